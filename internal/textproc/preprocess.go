// Package textproc normalizes free-text queries before embedding and
// lexical matching.
package textproc

import (
	"html"
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"
)

const (
	// DefaultMaxQueryLength is the truncation bound for raw queries, in runes.
	DefaultMaxQueryLength = 500
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	// Safe punctuation set: word characters, whitespace, hyphen and
	// sentence punctuation survive; everything else is stripped.
	unsafePattern = regexp.MustCompile(`[^\w\s\-.,?!]`)
	wordPattern   = regexp.MustCompile(`[0-9A-Za-z_]+`)
)

// Preprocessor normalizes raw query text. It holds only read-only state
// and is safe for concurrent use.
type Preprocessor struct {
	maxQueryLength int
}

// NewPreprocessor creates a preprocessor with the given truncation bound.
// A non-positive maxQueryLength falls back to DefaultMaxQueryLength.
func NewPreprocessor(maxQueryLength int) *Preprocessor {
	if maxQueryLength <= 0 {
		maxQueryLength = DefaultMaxQueryLength
	}
	return &Preprocessor{maxQueryLength: maxQueryLength}
}

// Preprocess normalizes raw query text: truncate, strip markup, collapse
// whitespace, drop unsafe characters, lowercase, tokenize, stem and
// remove stopwords. An empty result is valid; callers decide whether an
// empty normalized query is a constraint or a rejection.
func (p *Preprocessor) Preprocess(raw string) string {
	tokens := p.StemmedTokens(raw)
	return strings.Join(tokens, " ")
}

// StemmedTokens returns the stemmed, stopword-filtered tokens of raw.
func (p *Preprocessor) StemmedTokens(raw string) []string {
	cleaned := p.clean(raw)

	words := wordPattern.FindAllString(cleaned, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		stemmed := Stem(w)
		if stemmed == "" || IsStopword(stemmed) || IsStopword(w) {
			continue
		}
		tokens = append(tokens, stemmed)
	}
	return tokens
}

// Truncate bounds raw to the configured maximum length in runes.
func (p *Preprocessor) Truncate(raw string) string {
	runes := []rune(raw)
	if len(runes) <= p.maxQueryLength {
		return raw
	}
	return string(runes[:p.maxQueryLength])
}

// clean applies the pre-tokenization steps: truncation, markup
// stripping, whitespace collapsing, unsafe character removal and
// lowercasing.
func (p *Preprocessor) clean(raw string) string {
	s := p.Truncate(raw)
	s = StripMarkup(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = unsafePattern.ReplaceAllString(s, "")
	return strings.ToLower(s)
}

// StripMarkup removes markup tags and decodes entities, treating the
// input as plain text.
func StripMarkup(s string) string {
	if !strings.ContainsRune(s, '<') && !strings.ContainsRune(s, '&') {
		return s
	}
	s = tagPattern.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}

// Stem applies the Porter (Snowball English) stemmer to a single token.
func Stem(token string) string {
	return english.Stem(strings.ToLower(token), false)
}

// Tokenize splits text into lowercase word tokens without stemming or
// stopword removal. Used by the highlighter, which needs the original
// token stream.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}
