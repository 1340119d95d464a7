package ingest

import (
	"sort"
	"strings"

	"github.com/cognicore/evolve/pkg/evolve/stoplist"
)

// Defaults for keyword extraction and name derivation.
const (
	DefaultMaxKeywords = 10
	DefaultMinLength   = 3
	DefaultNameWords   = 5
)

// Tokenizer handles text tokenization and keyword extraction
type Tokenizer struct {
	stops       *stoplist.Manager
	maxKeywords int
	minLength   int
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithMaxKeywords caps the number of keywords returned by Keywords.
func WithMaxKeywords(n int) Option {
	return func(t *Tokenizer) {
		if n > 0 {
			t.maxKeywords = n
		}
	}
}

// WithMinLength sets the shortest token length accepted as a keyword.
func WithMinLength(n int) Option {
	return func(t *Tokenizer) {
		if n > 0 {
			t.minLength = n
		}
	}
}

// NewTokenizer creates a tokenizer that filters keywords through the given stoplist.
// A nil stoplist uses stoplist.Default().
func NewTokenizer(stops *stoplist.Manager, opts ...Option) *Tokenizer {
	if stops == nil {
		stops = stoplist.Default()
	}
	t := &Tokenizer{
		stops:       stops,
		maxKeywords: DefaultMaxKeywords,
		minLength:   DefaultMinLength,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize splits text into lowercase ASCII alphanumeric runs.
// Every other character, including non-ASCII letters, is a separator.
// No stopword filtering happens here: corpus statistics and single-text
// vectors must see exactly the same tokens.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	var tokens []string
	start := -1
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, lower[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, lower[start:])
	}
	return tokens
}

// TokenSet returns the distinct tokens of a token slice.
func TokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// Tokenize is the method form of the package-level Tokenize.
func (t *Tokenizer) Tokenize(text string) []string {
	return Tokenize(text)
}

// Keywords returns the most frequent non-stopword tokens of text.
// Ties keep the order in which tokens first appear.
func (t *Tokenizer) Keywords(text string) []string {
	type counted struct {
		token string
		count int
	}

	index := make(map[string]int)
	var freq []counted
	for _, tok := range Tokenize(text) {
		if len(tok) < t.minLength || t.stops.IsStop(tok) {
			continue
		}
		if i, ok := index[tok]; ok {
			freq[i].count++
			continue
		}
		index[tok] = len(freq)
		freq = append(freq, counted{token: tok, count: 1})
	}

	sort.SliceStable(freq, func(i, j int) bool {
		return freq[i].count > freq[j].count
	})

	n := t.maxKeywords
	if len(freq) < n {
		n = len(freq)
	}
	keywords := make([]string, n)
	for i := 0; i < n; i++ {
		keywords[i] = freq[i].token
	}
	return keywords
}

// ShortName joins the first n whitespace-delimited words of text.
// "..." is appended when words were dropped.
func ShortName(text string, n int) string {
	if n <= 0 {
		n = DefaultNameWords
	}
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}
