package memstore

import (
	"context"
	"sync"

	"github.com/cognicore/evolve/pkg/evolve/store"
	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

// Store is an in-memory implementation of store.Store for tests.
// Load and Save copy the document so callers observe the same whole-document
// semantics as the file and SQLite stores.
type Store struct {
	mu      sync.RWMutex
	doc     *taxonomy.Document
	version string
	saves   int
	loadErr error
}

var _ store.Store = (*Store)(nil)

// New creates a store seeded with doc. A nil doc starts empty.
func New(doc *taxonomy.Document) *Store {
	s := &Store{version: taxonomy.DefaultVersion}
	if doc != nil {
		s.doc = doc.Clone()
		s.version = doc.Version
	}
	return s
}

// FailLoad makes every subsequent Load return err. Pass nil to clear it.
func (s *Store) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context) (*taxonomy.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.doc == nil {
		return taxonomy.NewDocument(s.version), nil
	}
	return s.doc.Clone(), nil
}

// Save implements store.Store.
func (s *Store) Save(ctx context.Context, doc *taxonomy.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = doc.Clone()
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }
