package stoplist

import (
	"strings"
)

// defaultTerms are the function words dropped before keyword extraction.
var defaultTerms = []string{
	"the", "a", "an", "is", "are", "was", "were", "be", "been",
	"being", "have", "has", "had", "do", "does", "did", "will",
	"would", "could", "should", "may", "might", "shall", "can",
	"to", "of", "in", "for", "on", "with", "at", "by", "from",
	"as", "into", "through", "during", "before", "after", "and",
	"but", "or", "nor", "not", "so", "yet", "both", "either",
	"neither", "each", "every", "all", "any", "few", "more",
	"most", "other", "some", "such", "no", "only", "own", "same",
	"than", "too", "very", "just", "that", "this", "it", "its",
	"they", "their", "them", "we", "our", "us", "he", "she",
	"his", "her", "him", "who", "which", "what", "when", "where",
	"how", "why", "if", "then", "about", "up", "out", "also",
}

// DefaultTerms returns a copy of the built-in stopword list.
func DefaultTerms() []string {
	out := make([]string, len(defaultTerms))
	copy(out, defaultTerms)
	return out
}

// Manager holds the stopword set used for keyword extraction
type Manager struct {
	stops map[string]struct{}
}

// NewManager creates a stoplist from the given terms, lowercased
func NewManager(terms []string) *Manager {
	stops := make(map[string]struct{}, len(terms))
	for _, s := range terms {
		stops[strings.ToLower(s)] = struct{}{}
	}
	return &Manager{stops: stops}
}

// Default returns a Manager seeded with DefaultTerms.
func Default() *Manager {
	return NewManager(defaultTerms)
}

// IsStop checks if a token is a stopword
func (m *Manager) IsStop(token string) bool {
	if m == nil {
		return false
	}
	_, ok := m.stops[token]
	return ok
}

// Add adds a token to the stoplist
func (m *Manager) Add(token string) {
	m.stops[strings.ToLower(token)] = struct{}{}
}

// Remove removes a token from the stoplist
func (m *Manager) Remove(token string) {
	delete(m.stops, strings.ToLower(token))
}

// Len reports the number of stopwords.
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	return len(m.stops)
}
