package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/sources"
)

type snapshotPayload struct {
	Articles []models.RawArticle `json:"articles"`
}

// SaveJSON writes raw records to path in the same envelope the fallback
// loader reads, so a snapshot can serve as offline data later. With
// appendMode set, records already on disk are kept and new ones merged in,
// deduplicated by key.
func SaveJSON(path string, raws []models.RawArticle, appendMode bool) error {
	merged := make([]models.RawArticle, 0, len(raws))
	seen := make(map[string]struct{})

	if appendMode {
		existing, err := sources.LoadFallback(path)
		switch {
		case err == nil:
			for _, raw := range existing {
				key := raw.Key()
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				merged = append(merged, raw)
			}
		case errors.Is(err, os.ErrNotExist):
			// first write, nothing to merge
		default:
			return err
		}
	}

	for _, raw := range raws {
		key := raw.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, raw)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshotPayload{Articles: merged}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
