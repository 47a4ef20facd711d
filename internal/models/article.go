package models

import (
	"bytes"
	"context"
	"encoding/json"
)

// RawArticle is an incoming record as delivered by a feed, the headlines API,
// the fallback file, or AI annotation. Everything is optional; upstreams
// disagree on field names, so both variants are kept and coalesced during
// normalization.
type RawArticle struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
	Summary     string `json:"summary,omitempty"`
	URL         string `json:"url,omitempty"`
	Link        string `json:"link,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	PubDate     string `json:"pubDate,omitempty"`
	Source      Source `json:"source"`
	URLToImage  string `json:"urlToImage,omitempty"`
	Image       string `json:"image,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Key is the identity used for de-duplication, shared with Article.Key.
func (r RawArticle) Key() string {
	u := r.URL
	if u == "" {
		u = r.Link
	}
	return r.Title + "-" + u
}

// Article is the canonical record every consumer works with.
type Article struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	FullText    string `json:"fullText,omitempty"`
	Category    string `json:"category"`
	Source      Source `json:"source"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Image       string `json:"image,omitempty"`
}

func (a Article) Key() string {
	return a.Title + "-" + a.URL
}

// Source identifies where an article came from. Upstream payloads carry it
// either as a bare string or as an {id, name} object; the decoded shape is
// remembered so records round-trip unchanged.
type Source struct {
	ID   string
	Name string
	bare bool
}

func (s Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Canonical returns the source forced to the object shape, used when a raw
// record is promoted to a canonical Article.
func (s Source) Canonical() Source {
	s.bare = false
	return s
}

func (s *Source) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Source{}
		return nil
	}
	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*s = Source{Name: name, bare: true}
		return nil
	}
	var obj struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = Source{ID: obj.ID, Name: obj.Name}
	return nil
}

func (s Source) MarshalJSON() ([]byte, error) {
	if s.bare {
		return json.Marshal(s.Name)
	}
	if s.ID == "" && s.Name == "" {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name"`
	}{s.ID, s.Name})
}

type TopicGroup struct {
	Topic    string    `json:"topic"`
	Articles []Article `json:"articles"`
}

type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

type NewsSource interface {
	FetchArticles(ctx context.Context, limit int) ([]RawArticle, error)
	GetName() string
}
