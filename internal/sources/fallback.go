package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/briefwire/briefwire/internal/models"
)

// LoadFallback reads the static local payload served when live sources come
// up empty.
func LoadFallback(path string) ([]models.RawArticle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback file: %w", err)
	}
	raws, err := DecodePayload(data)
	if err != nil {
		return nil, fmt.Errorf("parse fallback file %s: %w", path, err)
	}
	return raws, nil
}

var errPayloadShape = errors.New("unrecognized payload shape")

// DecodePayload accepts the payload shapes upstreams use: an object with an
// "articles" array, a bare array, an object whose first array value holds the
// records, or a lone record object.
func DecodePayload(data []byte) ([]models.RawArticle, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err == nil {
		if msg, ok := envelope["articles"]; ok {
			var raws []models.RawArticle
			if err := json.Unmarshal(msg, &raws); err == nil && raws != nil {
				return raws, nil
			}
		}

		keys := make([]string, 0, len(envelope))
		for k := range envelope {
			if k == "articles" {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			var raws []models.RawArticle
			if err := json.Unmarshal(envelope[k], &raws); err == nil && raws != nil {
				return raws, nil
			}
		}

		// No array anywhere; treat the object itself as a single record.
		var single models.RawArticle
		if err := json.Unmarshal(data, &single); err == nil {
			return []models.RawArticle{single}, nil
		}
		return nil, errPayloadShape
	}

	var bare []models.RawArticle
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	return nil, errPayloadShape
}

// PlaceholderArticle stands in when both live sources and the fallback file
// are unavailable, so consumers never render an empty error screen.
func PlaceholderArticle() models.RawArticle {
	return models.RawArticle{
		Title:       "News temporarily unavailable",
		Summary:     "We couldn't load fresh news right now. Please try again soon.",
		Category:    "general",
		Source:      models.Source{Name: "briefwire"},
		PublishedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
