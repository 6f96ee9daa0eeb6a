package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/telemetry"
)

// DefaultIndex holds stories and articles
const DefaultIndex = "gunwadex-content"

// Client wraps the Elasticsearch client for the content index
type Client struct {
	es    *elasticsearch.Client
	index string
}

// NewClient creates an Elasticsearch client. An empty URL disables search
// indexing and returns (nil, nil).
func NewClient(cfg config.SearchConfig) (*Client, error) {
	if cfg.ElasticsearchURL == "" {
		return nil, nil
	}
	index := cfg.Index
	if index == "" {
		index = DefaultIndex
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ElasticsearchURL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: telemetry.NewInstrumentedTransport(http.DefaultTransport),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &Client{es: es, index: index}, nil
}

// Index returns the index name
func (c *Client) Index() string {
	return c.index
}

// Ping verifies the cluster is reachable
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("info", res)
	}
	return nil
}

func contentMapping() map[string]interface{} {
	text := map[string]interface{}{"type": "text", "analyzer": "standard"}
	keyword := map[string]interface{}{"type": "keyword"}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"_meta": map[string]interface{}{"version": IndexVersion},
			"properties": map[string]interface{}{
				"kind": keyword,
				"id":   keyword,
				"title": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
					"fields": map[string]interface{}{
						"keyword": keyword,
					},
				},
				"slug":         keyword,
				"summary":      text,
				"author":       text,
				"category":     keyword,
				"cover_url":    map[string]interface{}{"type": "keyword", "index": false},
				"like_count":   map[string]interface{}{"type": "integer"},
				"published_at": map[string]interface{}{"type": "date"},
			},
		},
	}
}

// EnsureIndex creates the content index if it does not exist.
// It reports whether the index was created.
func (c *Client) EnsureIndex(ctx context.Context) (bool, error) {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check if index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return false, nil
	}

	body, err := json.Marshal(contentMapping())
	if err != nil {
		return false, fmt.Errorf("failed to marshal mapping: %w", err)
	}
	res, err = c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return false, responseError("create index", res)
	}
	return true, nil
}

// Put indexes or replaces a document
func (c *Client) Put(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", doc.Kind, err)
	}
	res, err := c.es.Index(c.index, bytes.NewReader(body),
		c.es.Index.WithDocumentID(doc.DocID()),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", doc.Kind, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index "+doc.Kind, res)
	}
	return nil
}

// Delete removes a document; a missing document is not an error
func (c *Client) Delete(ctx context.Context, kind, id string) error {
	res, err := c.es.Delete(c.index, docID(kind, id), c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete "+kind, res)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64  `json:"_score"`
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a relevance query over titles, summaries and authors
func (c *Client) Search(ctx context.Context, query string, limit, offset int) (*Result, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^3", "summary", "author^2"},
				"fuzziness": "AUTO",
			},
		},
		"sort": []interface{}{"_score", map[string]interface{}{"published_at": "desc"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithFrom(offset),
		c.es.Search.WithSize(limit),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := &Result{Query: query, Total: parsed.Hits.Total.Value, Backend: BackendElasticsearch, Hits: []Hit{}}
	for _, h := range parsed.Hits.Hits {
		result.Hits = append(result.Hits, Hit{Document: h.Source, Score: h.Score})
	}
	return result, nil
}

func responseError(op string, res *esapi.Response) error {
	var errResp map[string]interface{}
	raw, _ := io.ReadAll(res.Body)
	if err := json.Unmarshal(raw, &errResp); err != nil || errResp["error"] == nil {
		return fmt.Errorf("elasticsearch %s: [%s]", op, res.Status())
	}
	return fmt.Errorf("elasticsearch %s: [%s] %v", op, res.Status(), errResp["error"])
}
