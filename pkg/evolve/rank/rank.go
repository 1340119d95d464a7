package rank

import (
	"math"
	"strings"

	"github.com/cognicore/evolve/pkg/evolve/corpus"
	"github.com/cognicore/evolve/pkg/evolve/ingest"
)

// Vector is a sparse TF-IDF term vector
type Vector map[string]float64

// Vectorize builds a TF-IDF vector: (count/total) * idf(token).
func Vectorize(tokens []string, idf corpus.IDF) Vector {
	if len(tokens) == 0 {
		return Vector{}
	}
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	total := float64(len(tokens))
	vec := make(Vector, len(tf))
	for tok, count := range tf {
		vec[tok] = (float64(count) / total) * idf.Weight(tok)
	}
	return vec
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	sum := 0.0
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of two sparse vectors.
// It is 0 when either vector is empty or they share no keys.
func Cosine(a, b Vector) float64 {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	dot := 0.0
	shared := false
	for tok, w := range small {
		if other, ok := large[tok]; ok {
			dot += w * other
			shared = true
		}
	}
	if !shared {
		return 0.0
	}
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0.0
	}
	return dot / (na * nb)
}

// KeywordOverlap returns the fraction of keywords present in tokens,
// compared case-insensitively. No keywords scores 0.
func KeywordOverlap(keywords []string, tokens map[string]struct{}) float64 {
	if len(keywords) == 0 {
		return 0.0
	}
	hits := 0
	for _, kw := range keywords {
		if _, ok := tokens[strings.ToLower(kw)]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// Weights defines the blend of the two similarity signals
type Weights struct {
	Cosine  float64 // TF-IDF cosine similarity
	Keyword float64 // keyword overlap
}

// DefaultWeights returns the 0.6 cosine / 0.4 keyword blend.
func DefaultWeights() Weights {
	return Weights{Cosine: 0.6, Keyword: 0.4}
}

// Scorer calculates blended similarity against one corpus snapshot
type Scorer struct {
	weights Weights
	idf     corpus.IDF
}

// NewScorer creates a new scorer with the given weights and IDF table
func NewScorer(w Weights, idf corpus.IDF) *Scorer {
	return &Scorer{weights: w, idf: idf}
}

// Query is a vectorized incoming description
type Query struct {
	Tokens []string
	Set    map[string]struct{}
	Vector Vector
}

// NewQuery tokenizes and vectorizes text once so it can be scored against many candidates.
func (s *Scorer) NewQuery(text string) Query {
	tokens := ingest.Tokenize(text)
	return Query{
		Tokens: tokens,
		Set:    ingest.TokenSet(tokens),
		Vector: Vectorize(tokens, s.idf),
	}
}

// Candidate is an existing entry being compared to a query
type Candidate struct {
	Text     string
	Keywords []string
}

// ScoreBreakdown provides detailed scoring information
type ScoreBreakdown struct {
	Cosine   float64
	Keyword  float64
	Combined float64
}

// Score calculates the blended score of candidate for query
//
// score = w_cos·cosine(query, candidate) + w_kw·keyword_overlap(candidate, query)
func (s *Scorer) Score(q Query, c Candidate) ScoreBreakdown {
	cos := Cosine(q.Vector, Vectorize(ingest.Tokenize(c.Text), s.idf))
	kw := KeywordOverlap(c.Keywords, q.Set)
	return ScoreBreakdown{
		Cosine:   cos,
		Keyword:  kw,
		Combined: s.weights.Cosine*cos + s.weights.Keyword*kw,
	}
}
