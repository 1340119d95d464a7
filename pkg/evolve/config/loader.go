package config

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/evolve/pkg/evolve"
	"github.com/cognicore/evolve/pkg/evolve/ingest"
	"github.com/cognicore/evolve/pkg/evolve/stoplist"
	"github.com/cognicore/evolve/pkg/evolve/store"
	"github.com/cognicore/evolve/pkg/evolve/store/jsonfile"
	"github.com/cognicore/evolve/pkg/evolve/store/sqlite"
)

// Loader loads configuration files and constructs components
type Loader struct {
	ConfigPath string // optional YAML config; defaults apply when empty

	// Overrides applied after the config file, typically from CLI flags.
	StorePath   string
	StoreDriver string
}

// Components holds all loaded configuration components
type Components struct {
	Config    Config
	Stoplist  *stoplist.Manager
	Tokenizer *ingest.Tokenizer
	Store     store.Store
}

// Close releases the store.
func (c *Components) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// Options returns engine options wired to the loaded components.
func (c *Components) Options(logger *zap.Logger) evolve.Options {
	return evolve.Options{
		Store:      c.Store,
		Tokenizer:  c.Tokenizer,
		Weights:    c.Config.Weights(),
		Threshold:  c.Config.Match.Threshold,
		MinSources: c.Config.Lifecycle.MinSources,
		DaysUnseen: c.Config.Lifecycle.DaysUnseen,
		Prefix:     c.Config.Prefix,
		NameWords:  c.Config.Keywords.NameWords,
		Logger:     logger,
	}
}

// Load reads the configuration and returns initialized components
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	cfg := Default()
	if l.ConfigPath != "" {
		loaded, err := Load(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if l.StorePath != "" {
		cfg.Store.Path = l.StorePath
	}
	if l.StoreDriver != "" {
		cfg.Store.Driver = l.StoreDriver
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	comp := &Components{Config: cfg}

	// Load stoplist
	if cfg.Stoplist != "" {
		sl, err := LoadStoplist(cfg.Stoplist)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		comp.Stoplist = stoplist.NewManager(sl.Terms)
	} else {
		comp.Stoplist = stoplist.Default()
	}
	for _, term := range cfg.Stopwords.Add {
		comp.Stoplist.Add(term)
	}
	for _, term := range cfg.Stopwords.Remove {
		comp.Stoplist.Remove(term)
	}

	comp.Tokenizer = ingest.NewTokenizer(comp.Stoplist,
		ingest.WithMaxKeywords(cfg.Keywords.Max),
		ingest.WithMinLength(cfg.Keywords.MinLength),
	)

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	comp.Store = st

	return comp, nil
}

// OpenStore opens the backend selected by cfg.Store.
func OpenStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case DriverSQLite:
		st, err := sqlite.OpenSQLite(ctx, cfg.Store.Path, cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	case DriverJSON, "":
		return jsonfile.New(cfg.Store.Path, cfg.Version), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
