package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/briefwire/briefwire/internal/classify"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/summary"
)

const (
	summarySentences = 2
	summaryChars     = 300
)

// Normalize promotes a raw record to the canonical article shape: summary
// derived (or carried over from annotation), category resolved, field name
// variants coalesced.
func Normalize(raw models.RawArticle) models.Article {
	body := raw.Description
	if strings.TrimSpace(body) == "" {
		body = raw.Content
	}

	sum := strings.TrimSpace(raw.Summary)
	if sum == "" {
		sum = summary.Summarize(body, summarySentences, summaryChars)
	}

	category := strings.ToLower(strings.TrimSpace(raw.Category))
	if category == "" {
		category = classify.FromSourceName(raw.Source.DisplayName())
	}
	if category == "" {
		category = classify.DefaultCategory
	}

	url := raw.URL
	if url == "" {
		url = raw.Link
	}
	published := raw.PublishedAt
	if published == "" {
		published = raw.PubDate
	}
	image := raw.URLToImage
	if image == "" {
		image = raw.Image
	}

	return models.Article{
		Title:       raw.Title,
		Summary:     sum,
		FullText:    body,
		Category:    category,
		Source:      raw.Source.Canonical(),
		URL:         url,
		PublishedAt: published,
		Image:       image,
	}
}

func NormalizeAll(raws []models.RawArticle) []models.Article {
	articles := make([]models.Article, 0, len(raws))
	for _, r := range raws {
		articles = append(articles, Normalize(r))
	}
	return articles
}

// Dedupe drops records repeating an identity key, keeping the first
// occurrence. Order is preserved and the input is not modified.
func Dedupe(articles []models.Article) []models.Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		key := a.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

var publishedLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParsePublished parses the timestamp formats seen across feeds. Anything
// unparsable maps to the Unix epoch so it sorts as oldest.
func ParsePublished(s string) time.Time {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, layout := range publishedLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Unix(0, 0).UTC()
}

// SortByDate orders articles by publication time, newest first unless oldest
// is requested. The sort is stable and works on a copy.
func SortByDate(articles []models.Article, order models.SortOrder) []models.Article {
	type dated struct {
		article models.Article
		when    time.Time
	}
	ds := make([]dated, len(articles))
	for i, a := range articles {
		ds[i] = dated{a, ParsePublished(a.PublishedAt)}
	}

	sort.SliceStable(ds, func(i, j int) bool {
		if order == models.SortOldest {
			return ds[i].when.Before(ds[j].when)
		}
		return ds[i].when.After(ds[j].when)
	})

	out := make([]models.Article, len(ds))
	for i, d := range ds {
		out[i] = d.article
	}
	return out
}

// FilterByCategory keeps articles whose category equals the selection; the
// "all" sentinel (or an empty selection) passes everything through.
func FilterByCategory(articles []models.Article, category string) []models.Article {
	if category == "" || category == "all" {
		return articles
	}
	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}
