package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/briefwire/briefwire/internal/models"
)

// DefaultLimit caps how many matches a reply carries.
const DefaultLimit = 6

type Response struct {
	Reply    string           `json:"reply"`
	Articles []models.Article `json:"articles"`
}

// Search ranks articles by how many distinct query tokens appear as
// substrings of their title, summary, or source name. Ties keep input order.
func Search(articles []models.Article, query string, limit int) []models.Article {
	tokens := uniqueTokens(query)
	if len(tokens) == 0 {
		return nil
	}

	type scored struct {
		article models.Article
		score   int
	}
	var matches []scored
	for _, a := range articles {
		haystack := strings.ToLower(a.Title + " " + a.Summary + " " + a.Source.DisplayName())
		score := 0
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{a, score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]models.Article, len(matches))
	for i, m := range matches {
		out[i] = m.article
	}
	return out
}

// Answer builds the assistant response for a query. Zero matches produce a
// friendly reply, never an error.
func Answer(articles []models.Article, query string) Response {
	matches := Search(articles, query, DefaultLimit)
	if len(matches) == 0 {
		return Response{
			Reply:    fmt.Sprintf("I couldn't find any news matching %q. Try different keywords.", strings.TrimSpace(query)),
			Articles: []models.Article{},
		}
	}

	noun := "stories"
	if len(matches) == 1 {
		noun = "story"
	}
	return Response{
		Reply:    fmt.Sprintf("Found %d %s matching your search:", len(matches), noun),
		Articles: matches,
	}
}

func uniqueTokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	tokens := fields[:0]
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}
