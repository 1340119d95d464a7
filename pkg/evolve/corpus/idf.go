// Package corpus computes corpus-wide term statistics over taxonomy entries.
package corpus

import (
	"math"

	"github.com/cognicore/evolve/pkg/evolve/ingest"
)

// UnknownWeight is the IDF assigned to tokens never seen in the corpus.
const UnknownWeight = 1.0

// IDF maps a token to its smoothed inverse document frequency.
type IDF map[string]float64

// Weight returns the IDF of token, or UnknownWeight if the corpus never saw it.
func (idf IDF) Weight(token string) float64 {
	if w, ok := idf[token]; ok {
		return w
	}
	return UnknownWeight
}

// Stats holds document frequencies for a set of texts.
type Stats struct {
	Docs int
	DF   map[string]int
}

// Collect tokenizes each text and counts, per token, how many texts contain it.
func Collect(texts []string) Stats {
	s := Stats{Docs: len(texts), DF: make(map[string]int)}
	for _, text := range texts {
		for tok := range ingest.TokenSet(ingest.Tokenize(text)) {
			s.DF[tok]++
		}
	}
	return s
}

// IDF converts the document frequencies into smoothed IDF weights:
// ln((N+1)/(df+1)) + 1.
func (s Stats) IDF() IDF {
	n := s.Docs
	if n == 0 {
		n = 1
	}
	idf := make(IDF, len(s.DF))
	for tok, df := range s.DF {
		idf[tok] = math.Log(float64(n+1)/float64(df+1)) + 1
	}
	return idf
}

// BuildIDF is Collect(texts).IDF().
func BuildIDF(texts []string) IDF {
	return Collect(texts).IDF()
}
