// Package jsonfile stores the taxonomy document as a single JSON file.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cognicore/evolve/pkg/evolve/store"
	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

// FileStore implements store.Store on top of one JSON document.
type FileStore struct {
	path    string
	version string
}

var _ store.Store = (*FileStore)(nil)

// New returns a FileStore for path. version stamps documents created when
// the file does not exist yet.
func New(path, version string) *FileStore {
	return &FileStore{path: path, version: version}
}

// Load reads and parses the document.
func (s *FileStore) Load(ctx context.Context) (*taxonomy.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return taxonomy.NewDocument(s.version), nil
		}
		return nil, fmt.Errorf("read taxonomy %s: %w", s.path, err)
	}
	doc, err := taxonomy.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse taxonomy %s: %w", s.path, err)
	}
	return doc, nil
}

// Save writes the document to a temporary file next to the target and
// renames it into place, so readers never observe a half-written file.
func (s *FileStore) Save(ctx context.Context, doc *taxonomy.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := taxonomy.Encode(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create taxonomy directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write taxonomy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close taxonomy: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod taxonomy: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace taxonomy: %w", err)
	}
	return nil
}

// Close implements store.Store.
func (s *FileStore) Close() error { return nil }
