package store

import (
	"context"

	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

// Store persists the taxonomy document as a whole.
//
// Every mutating engine operation is Load, mutate in memory, Save. There is
// no lock or version token between the two calls: concurrent writers against
// the same backing document lose updates (last writer wins). Callers must
// serialize access.
type Store interface {
	// Load returns a fresh copy of the persisted document. A backing
	// document that does not exist yet loads as an empty document; one that
	// cannot be parsed fails with internalerr.ErrMalformed.
	Load(ctx context.Context) (*taxonomy.Document, error)

	// Save replaces the persisted document with doc.
	Save(ctx context.Context, doc *taxonomy.Document) error

	Close() error
}
