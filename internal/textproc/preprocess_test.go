package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocess_Basic(t *testing.T) {
	p := NewPreprocessor(0)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase and stem",
			input: "Running Databases",
			want:  "run databas",
		},
		{
			name:  "stopwords removed",
			input: "the cats and the dogs",
			want:  "cat dog",
		},
		{
			name:  "markup stripped",
			input: "<b>budget</b> report &amp; summary",
			want:  "budget report summari",
		},
		{
			name:  "whitespace collapsed",
			input: "  annual \t\n  report  ",
			want:  "annual report",
		},
		{
			name:  "unsafe characters stripped",
			input: "q3 *&^% earnings!",
			want:  "q3 earn",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "only stopwords and punctuation",
			input: "the of and !!!",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Preprocess(tt.input))
		})
	}
}

func TestPreprocess_Deterministic(t *testing.T) {
	p := NewPreprocessor(0)
	in := "Deterministic Stemming Of Queries"
	first := p.Preprocess(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.Preprocess(in))
	}
}

func TestPreprocess_TruncatesLongInput(t *testing.T) {
	p := NewPreprocessor(20)

	long := strings.Repeat("federal ", 100)
	out := p.Preprocess(long)

	// Truncation happens before tokenization, so output length is bounded
	// by the raw cap, not rejected.
	require.NotEmpty(t, out)
	assert.LessOrEqual(t, len(out), 20)
}

func TestStemmedTokens(t *testing.T) {
	p := NewPreprocessor(0)

	tokens := p.StemmedTokens("searching searched searches")
	require.Len(t, tokens, 3)
	assert.Equal(t, tokens[0], tokens[1])
	assert.Equal(t, tokens[1], tokens[2])
}

func TestTokenize_KeepsStopwords(t *testing.T) {
	tokens := Tokenize("The cat sat on the mat")
	assert.Equal(t, []string{"the", "cat", "sat", "on", "the", "mat"}, tokens)
}

func TestStripMarkup(t *testing.T) {
	assert.Equal(t, "plain text", StripMarkup("plain text"))
	assert.Equal(t, " hello  world ", StripMarkup("<p>hello <i>world</i></p>"))
	assert.Equal(t, "a & b", StripMarkup("a &amp; b"))
}
