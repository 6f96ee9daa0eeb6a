package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTargetKind is returned when a target_type string is not a known kind
var ErrUnknownTargetKind = errors.New("unknown target kind")

// TargetKind names the content type a polymorphic row points at
type TargetKind string

const (
	TargetStory   TargetKind = "story"
	TargetEpisode TargetKind = "episode"
	TargetArticle TargetKind = "article"
	TargetComment TargetKind = "comment"
)

// ParseTargetKind accepts the lower-case kind names only
func ParseTargetKind(s string) (TargetKind, error) {
	switch k := TargetKind(strings.ToLower(strings.TrimSpace(s))); k {
	case TargetStory, TargetEpisode, TargetArticle, TargetComment:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTargetKind, s)
}

func (k TargetKind) Valid() bool {
	_, err := ParseTargetKind(string(k))
	return err == nil
}

// Value implements driver.Valuer; unknown kinds never reach the database
func (k TargetKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTargetKind, string(k))
	}
	return string(k), nil
}

// Scan implements sql.Scanner
func (k *TargetKind) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("%w: unsupported column value %T", ErrUnknownTargetKind, value)
	}
	parsed, err := ParseTargetKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// TargetSet is the subset of kinds an association accepts
type TargetSet map[TargetKind]struct{}

func newTargetSet(kinds ...TargetKind) TargetSet {
	s := make(TargetSet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// Allows reports whether kind belongs to the set
func (s TargetSet) Allows(kind TargetKind) bool {
	_, ok := s[kind]
	return ok
}

var (
	Commentable = newTargetSet(TargetStory, TargetEpisode, TargetArticle)
	Reactable   = newTargetSet(TargetStory, TargetEpisode, TargetArticle, TargetComment)
	Favoritable = newTargetSet(TargetStory, TargetArticle)
	Viewable    = newTargetSet(TargetStory, TargetEpisode, TargetArticle)
)

// TargetRef identifies one row of a polymorphic association
type TargetRef struct {
	Kind TargetKind `json:"target_type"`
	ID   string     `json:"target_id"`
}

// ParseTargetRef validates the raw (type, id) pair from a request
func ParseTargetRef(kind, id string) (TargetRef, error) {
	k, err := ParseTargetKind(kind)
	if err != nil {
		return TargetRef{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return TargetRef{}, errors.New("target id is required")
	}
	return TargetRef{Kind: k, ID: id}, nil
}

func (r TargetRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// TableName returns the table that holds rows of this kind
func (k TargetKind) TableName() string {
	switch k {
	case TargetStory:
		return "stories"
	case TargetEpisode:
		return "episodes"
	case TargetArticle:
		return "articles"
	case TargetComment:
		return "comments"
	}
	return ""
}
