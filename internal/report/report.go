// Package report renders fetched news as shareable artifacts: a markdown
// digest and a JSON snapshot reusable as offline fallback data.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/summary"
)

const snippetLength = 240

// Markdown renders a numbered report of the given articles.
func Markdown(articles []models.Article, generatedAt time.Time) string {
	var sb strings.Builder
	sb.WriteString("# News Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", generatedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&sb, "Total articles: %d\n", len(articles))

	for i, article := range articles {
		fmt.Fprintf(&sb, "\n## %d. %s\n\n", i+1, article.Title)

		source := article.Source.DisplayName()
		if source == "" {
			source = "unknown"
		}
		sb.WriteString("*Source:* " + source)
		if article.PublishedAt != "" {
			sb.WriteString(" | *Published:* " + article.PublishedAt)
		}
		sb.WriteString("\n")

		if snippet := summary.Snippet(article.Summary, snippetLength); snippet != "" {
			sb.WriteString("\n" + snippet + "\n")
		}
		if article.URL != "" {
			fmt.Fprintf(&sb, "\n[Read more](%s)\n", article.URL)
		}
	}

	return sb.String()
}

// WriteMarkdown renders the report and writes it to path, creating parent
// directories as needed.
func WriteMarkdown(path string, articles []models.Article, generatedAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Markdown(articles, generatedAt)), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
