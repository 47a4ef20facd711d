package summary

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Placeholder is returned when there is no usable text to summarize.
const Placeholder = "No summary available."

const ellipsis = "..."

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+`)

// CleanText collapses whitespace runs into single spaces and trims the ends.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Summarize extracts the first maxSentences sentence units from text and
// hard-truncates the result to maxChars runes with a trailing ellipsis when it
// runs long. Text without sentence boundaries degrades to plain truncation.
// Empty or whitespace-only input yields Placeholder.
func Summarize(text string, maxSentences, maxChars int) string {
	cleaned := CleanText(text)
	if cleaned == "" {
		return Placeholder
	}

	units := sentencePattern.FindAllString(cleaned, -1)
	if len(units) == 0 {
		units = []string{cleaned}
	}
	if maxSentences > 0 && len(units) > maxSentences {
		units = units[:maxSentences]
	}
	for i, u := range units {
		units[i] = strings.TrimSpace(u)
	}

	result := strings.Join(units, " ")
	if maxChars > 0 {
		if runes := []rune(result); len(runes) > maxChars {
			result = string(runes[:maxChars]) + ellipsis
		}
	}
	return result
}

// Snippet shortens text to limit runes, preferring to break at the last word
// boundary before the cut.
func Snippet(text string, limit int) string {
	cleaned := CleanText(text)
	runes := []rune(cleaned)
	if limit <= 0 || len(runes) <= limit {
		return cleaned
	}
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + ellipsis
}

// StripHTML extracts the visible text of an HTML fragment. Feed bodies often
// arrive as markup; on parse failure the input is returned unchanged.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return CleanText(doc.Text())
}
