// Package evolve is the taxonomy evolution engine: it routes incoming
// technique descriptions to existing taxonomy entries or creates new
// candidates, and drives the candidate → confirmed → deprecated lifecycle.
package evolve

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/evolve/pkg/evolve/corpus"
	"github.com/cognicore/evolve/pkg/evolve/ingest"
	"github.com/cognicore/evolve/pkg/evolve/internalerr"
	"github.com/cognicore/evolve/pkg/evolve/lifecycle"
	"github.com/cognicore/evolve/pkg/evolve/patterns"
	"github.com/cognicore/evolve/pkg/evolve/rank"
	"github.com/cognicore/evolve/pkg/evolve/store"
	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

// DefaultThreshold is the combined score at or above which a proposal is
// treated as evidence for an existing entry.
const DefaultThreshold = 0.35

// Engine is the main taxonomy facade.
//
// Every mutating call loads the whole document from the store, applies one
// change and saves it back. Nothing is locked across that cycle: two
// writers sharing a document race and the last save wins. Run one CLI
// invocation or one server per document.
type Engine struct {
	store     store.Store
	tokenizer *ingest.Tokenizer
	weights   rank.Weights
	prefix    string
	nameWords int
	defaults  Defaults
	now       func() time.Time
	log       *zap.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Defaults are the values used when a caller does not choose its own.
type Defaults struct {
	Threshold  float64
	MinSources int
	DaysUnseen int
}

// Options configures an Engine instance
type Options struct {
	Store      store.Store
	Tokenizer  *ingest.Tokenizer
	Weights    rank.Weights
	Threshold  float64
	MinSources int
	DaysUnseen int
	Prefix     string
	NameWords  int
	Now        func() time.Time
	Logger     *zap.Logger
}

// New creates an Engine with the given dependencies. Zero-valued options
// fall back to the package defaults.
func New(opts Options) *Engine {
	e := &Engine{
		store:     opts.Store,
		tokenizer: opts.Tokenizer,
		weights:   opts.Weights,
		prefix:    opts.Prefix,
		nameWords: opts.NameWords,
		defaults: Defaults{
			Threshold:  opts.Threshold,
			MinSources: opts.MinSources,
			DaysUnseen: opts.DaysUnseen,
		},
		now:     opts.Now,
		log:     opts.Logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	if e.tokenizer == nil {
		e.tokenizer = ingest.NewTokenizer(nil)
	}
	if e.weights == (rank.Weights{}) {
		e.weights = rank.DefaultWeights()
	}
	if e.prefix == "" {
		e.prefix = taxonomy.DefaultPrefix
	}
	if e.nameWords <= 0 {
		e.nameWords = ingest.DefaultNameWords
	}
	if e.defaults.Threshold <= 0 {
		e.defaults.Threshold = DefaultThreshold
	}
	if e.defaults.MinSources <= 0 {
		e.defaults.MinSources = lifecycle.DefaultMinSources
	}
	if e.defaults.DaysUnseen <= 0 {
		e.defaults.DaysUnseen = lifecycle.DefaultDaysUnseen
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	return e
}

// Close cleanly shuts down the engine and its store
func (e *Engine) Close() error {
	return e.store.Close()
}

// Defaults returns the threshold, promotion and staleness values in effect.
func (e *Engine) Defaults() Defaults {
	return e.defaults
}

// ProposeRequest describes one incoming technique observation
type ProposeRequest struct {
	Description string
	Source      string
	Evidence    string   // evidence payload; Description is used when empty
	Threshold   *float64 // nil uses the engine default; 0 accepts any overlap
}

// Propose scores the description against every entry and either records
// evidence on the best match or creates a new candidate.
func (e *Engine) Propose(ctx context.Context, req ProposeRequest) (Result, error) {
	if strings.TrimSpace(req.Source) == "" {
		return Result{}, fmt.Errorf("%w: source is required", internalerr.ErrInvalidInput)
	}
	threshold := e.defaults.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 {
		return Result{}, fmt.Errorf("%w: threshold must be >= 0", internalerr.ErrInvalidInput)
	}
	payload := req.Evidence
	if payload == "" {
		payload = req.Description
	}

	log := e.opLogger("propose")
	doc, err := e.store.Load(ctx)
	if err != nil {
		return Result{}, err
	}

	best := e.bestMatch(doc, req.Description)
	today := taxonomy.FormatDate(e.now())

	if best.entry != nil && best.score >= threshold {
		total, err := lifecycle.Accumulate(doc, best.entry.ID, req.Source, payload, today)
		if err != nil {
			return Result{}, err
		}
		if err := e.save(ctx, doc); err != nil {
			return Result{}, err
		}
		log.Info("proposal matched",
			zap.String("code_id", best.entry.ID),
			zap.String("action", string(ActionEvidenceAdded)),
			zap.Float64("score", best.score))
		return Result{Action: ActionEvidenceAdded, CodeID: best.entry.ID, TotalEvidence: total}, nil
	}

	entry := &taxonomy.Entry{
		ID:            doc.NextID(e.prefix),
		Name:          ingest.ShortName(req.Description, e.nameWords),
		Description:   req.Description,
		Keywords:      e.tokenizer.Keywords(req.Description),
		EmbeddingText: req.Description,
		Evidence: []taxonomy.Evidence{
			{Source: req.Source, Description: payload, Date: today},
		},
		Status:   taxonomy.StatusCandidate,
		Created:  today,
		LastSeen: today,
	}
	if err := doc.Add(entry); err != nil {
		return Result{}, err
	}
	if err := e.save(ctx, doc); err != nil {
		return Result{}, err
	}

	res := Result{
		Action:         ActionCreatedCandidate,
		CodeID:         entry.ID,
		Name:           entry.Name,
		BestMatchScore: roundScore(best.score),
	}
	if best.entry != nil {
		res.BestMatch = best.entry.ID
	}
	log.Info("candidate created",
		zap.String("code_id", entry.ID),
		zap.String("action", string(ActionCreatedCandidate)),
		zap.String("best_match", res.BestMatch),
		zap.Float64("score", best.score))
	return res, nil
}

type match struct {
	entry *taxonomy.Entry
	score float64
}

// bestMatch returns the entry with the strictly highest combined score above
// zero. Entries are visited in insertion order, so the first one inserted
// wins a tie.
func (e *Engine) bestMatch(doc *taxonomy.Document, description string) match {
	entries := doc.Entries()
	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.EmbeddingText
	}
	scorer := rank.NewScorer(e.weights, corpus.BuildIDF(texts))
	q := scorer.NewQuery(description)

	var best match
	for _, entry := range entries {
		s := scorer.Score(q, rank.Candidate{Text: entry.EmbeddingText, Keywords: entry.Keywords})
		e.log.Debug("scored entry",
			zap.String("code_id", entry.ID),
			zap.Float64("cosine", s.Cosine),
			zap.Float64("keyword", s.Keyword),
			zap.Float64("score", s.Combined))
		if s.Combined > best.score {
			best = match{entry: entry, score: s.Combined}
		}
	}
	return best
}

// AccumulateEvidence appends an evidence record to an existing entry.
// An unknown id returns an error wrapping internalerr.ErrNotFound and
// leaves the document untouched.
func (e *Engine) AccumulateEvidence(ctx context.Context, codeID, source, description string) (Result, error) {
	if codeID == "" {
		return Result{}, fmt.Errorf("%w: code id is required", internalerr.ErrInvalidInput)
	}
	if strings.TrimSpace(source) == "" {
		return Result{}, fmt.Errorf("%w: source is required", internalerr.ErrInvalidInput)
	}

	log := e.opLogger("evidence")
	doc, err := e.store.Load(ctx)
	if err != nil {
		return Result{}, err
	}
	total, err := lifecycle.Accumulate(doc, codeID, source, description, taxonomy.FormatDate(e.now()))
	if err != nil {
		log.Warn("evidence rejected", zap.String("code_id", codeID), zap.Error(err))
		return Result{}, err
	}
	if err := e.save(ctx, doc); err != nil {
		return Result{}, err
	}
	log.Info("evidence added",
		zap.String("code_id", codeID),
		zap.String("action", string(ActionEvidenceAdded)),
		zap.Int("total_evidence", total))
	return Result{Action: ActionEvidenceAdded, CodeID: codeID, TotalEvidence: total}, nil
}

// PromoteCandidates confirms every candidate backed by at least minSources
// distinct sources. The document is saved only when something changed.
func (e *Engine) PromoteCandidates(ctx context.Context, minSources int) ([]lifecycle.Promotion, error) {
	if minSources < 1 {
		return nil, fmt.Errorf("%w: min_sources must be >= 1", internalerr.ErrInvalidInput)
	}

	log := e.opLogger("promote")
	doc, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	promoted := lifecycle.Promote(doc, minSources)
	if len(promoted) == 0 {
		log.Debug("no candidates promoted", zap.Int("min_sources", minSources))
		return []lifecycle.Promotion{}, nil
	}
	if err := e.save(ctx, doc); err != nil {
		return nil, err
	}
	for _, p := range promoted {
		log.Info("candidate promoted", zap.String("code_id", p.CodeID), zap.Int("sources", p.Sources))
	}
	return promoted, nil
}

// DeprecationCheck deprecates every active entry not seen in the last
// daysUnseen days. The document is saved only when something changed.
func (e *Engine) DeprecationCheck(ctx context.Context, daysUnseen int) ([]lifecycle.Flag, error) {
	if daysUnseen < 0 {
		return nil, fmt.Errorf("%w: days must be >= 0", internalerr.ErrInvalidInput)
	}

	log := e.opLogger("deprecate")
	doc, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := lifecycle.Cutoff(e.now(), daysUnseen)
	flagged := lifecycle.Deprecate(doc, cutoff)
	if len(flagged) == 0 {
		log.Debug("nothing deprecated", zap.String("cutoff", cutoff))
		return []lifecycle.Flag{}, nil
	}
	if err := e.save(ctx, doc); err != nil {
		return nil, err
	}
	for _, f := range flagged {
		log.Info("entry deprecated", zap.String("code_id", f.CodeID), zap.String("last_seen", f.LastSeen))
	}
	return flagged, nil
}

// GeneratePatterns returns the scanner patterns for an entry, each checked
// to compile. Unknown ids yield an empty list, not an error.
func (e *Engine) GeneratePatterns(ctx context.Context, codeID string) ([]string, error) {
	doc, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := doc.Get(codeID)
	if !ok {
		e.log.Debug("patterns requested for unknown code", zap.String("code_id", codeID))
		return []string{}, nil
	}
	pats := patterns.Derive(entry)
	if _, err := patterns.Compile(pats); err != nil {
		return nil, err
	}
	return pats, nil
}

// Export returns the whole current document.
func (e *Engine) Export(ctx context.Context) (*taxonomy.Document, error) {
	return e.store.Load(ctx)
}

func (e *Engine) save(ctx context.Context, doc *taxonomy.Document) error {
	doc.Touch(e.now())
	if err := e.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("save taxonomy: %w", err)
	}
	return nil
}

func (e *Engine) opLogger(op string) *zap.Logger {
	e.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(e.now()), e.entropy).String()
	e.mu.Unlock()
	return e.log.With(zap.String("op", id), zap.String("command", op))
}

func roundScore(s float64) float64 {
	return math.Round(s*1000) / 1000
}
