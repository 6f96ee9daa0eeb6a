package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// IndexVersion is stored in the mapping _meta.
// Increment it whenever contentMapping changes.
const IndexVersion = 1

// CheckIndexVersion reports whether the index is missing or was created
// with an older mapping and needs a rebuild
func (c *Client) CheckIndexVersion(ctx context.Context) (bool, error) {
	res, err := c.es.Indices.GetMapping(
		c.es.Indices.GetMapping.WithIndex(c.index),
		c.es.Indices.GetMapping.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to get index mapping: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return true, nil
	}
	if res.IsError() {
		return false, responseError("get mapping", res)
	}

	var mappings map[string]struct {
		Mappings struct {
			Meta struct {
				Version int `json:"version"`
			} `json:"_meta"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mappings); err != nil {
		return true, nil
	}
	m, ok := mappings[c.index]
	if !ok {
		return true, nil
	}
	return m.Mappings.Meta.Version < IndexVersion, nil
}

// DeleteIndex drops the content index
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete index", res)
	}
	return nil
}
