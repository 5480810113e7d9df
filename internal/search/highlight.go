package search

import (
	"regexp"
	"strings"

	"github.com/fathomlabs/fathomd/internal/textproc"
)

// DefaultHighlightLength is the snippet window size in tokens.
const DefaultHighlightLength = 300

var highlightWordPattern = regexp.MustCompile(`[0-9A-Za-z_]+`)

// Highlighter extracts the most relevant snippet from document content
// and wraps matched terms in <mark> tags. Matching is stem-based, so a
// query for "databases" highlights "database" too.
type Highlighter struct {
	windowTokens int
}

// NewHighlighter creates a highlighter with the given snippet window, in
// whitespace-separated tokens. Non-positive falls back to
// DefaultHighlightLength.
func NewHighlighter(windowTokens int) *Highlighter {
	if windowTokens <= 0 {
		windowTokens = DefaultHighlightLength
	}
	return &Highlighter{windowTokens: windowTokens}
}

// QueryStems builds the stem set for a preprocessed query. The input is
// already stemmed and stopword-filtered, so this is a plain split.
func QueryStems(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	stems := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		stems[f] = struct{}{}
	}
	return stems
}

// Snippet returns the window of content with the most query-term
// matches, earliest window winning ties, with matched terms wrapped in
// <mark> tags. Content shorter than the window is returned whole.
func (h *Highlighter) Snippet(content string, stems map[string]struct{}) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return ""
	}
	if len(fields) <= h.windowTokens {
		return h.Mark(strings.Join(fields, " "), stems)
	}

	// Prefix sums over per-token match flags keep the window scan linear.
	matched := make([]int, len(fields)+1)
	for i, f := range fields {
		m := 0
		if fieldMatches(f, stems) {
			m = 1
		}
		matched[i+1] = matched[i] + m
	}

	best, bestCount := 0, -1
	for start := 0; start+h.windowTokens <= len(fields); start++ {
		count := matched[start+h.windowTokens] - matched[start]
		if count > bestCount {
			best, bestCount = start, count
		}
	}

	snippet := h.Mark(strings.Join(fields[best:best+h.windowTokens], " "), stems)
	if best > 0 {
		snippet = "..." + snippet
	}
	if best+h.windowTokens < len(fields) {
		snippet += "..."
	}
	return snippet
}

// Mark wraps every word whose stem is in stems with <mark> tags,
// preserving the surrounding text unchanged.
func (h *Highlighter) Mark(text string, stems map[string]struct{}) string {
	if len(stems) == 0 {
		return text
	}
	return highlightWordPattern.ReplaceAllStringFunc(text, func(word string) string {
		if _, ok := stems[textproc.Stem(word)]; ok {
			return "<mark>" + word + "</mark>"
		}
		return word
	})
}

// fieldMatches reports whether any word inside a whitespace-separated
// field stems to a query term.
func fieldMatches(field string, stems map[string]struct{}) bool {
	for _, word := range highlightWordPattern.FindAllString(field, -1) {
		if _, ok := stems[textproc.Stem(word)]; ok {
			return true
		}
	}
	return false
}
