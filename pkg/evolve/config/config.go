package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/evolve/pkg/evolve"
	"github.com/cognicore/evolve/pkg/evolve/ingest"
	"github.com/cognicore/evolve/pkg/evolve/internalerr"
	"github.com/cognicore/evolve/pkg/evolve/lifecycle"
	"github.com/cognicore/evolve/pkg/evolve/rank"
	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

// Store drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Config is the engine configuration file
type Config struct {
	Version   string    `yaml:"version"`
	Prefix    string    `yaml:"prefix"`
	Store     Store     `yaml:"store"`
	Match     Match     `yaml:"match"`
	Keywords  Keywords  `yaml:"keywords"`
	Lifecycle Lifecycle `yaml:"lifecycle"`
	Stoplist  string    `yaml:"stoplist"`
	Stopwords Stopwords `yaml:"stopwords"`
}

// Stopwords adjusts the loaded stoplist
type Stopwords struct {
	Add    []string `yaml:"add"`
	Remove []string `yaml:"remove"`
}

// Store selects the persistence backend
type Store struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Match configures the matcher
type Match struct {
	Threshold     float64 `yaml:"threshold"`
	CosineWeight  float64 `yaml:"cosine_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// Keywords configures keyword extraction and name derivation
type Keywords struct {
	Max       int `yaml:"max"`
	MinLength int `yaml:"min_length"`
	NameWords int `yaml:"name_words"`
}

// Lifecycle configures promotion and deprecation
type Lifecycle struct {
	MinSources int `yaml:"min_sources"`
	DaysUnseen int `yaml:"days_unseen"`
}

// Default returns the built-in configuration.
func Default() Config {
	w := rank.DefaultWeights()
	return Config{
		Version: taxonomy.DefaultVersion,
		Prefix:  taxonomy.DefaultPrefix,
		Store: Store{
			Driver: DriverJSON,
			Path:   "taxonomy/schema.json",
		},
		Match: Match{
			Threshold:     evolve.DefaultThreshold,
			CosineWeight:  w.Cosine,
			KeywordWeight: w.Keyword,
		},
		Keywords: Keywords{
			Max:       ingest.DefaultMaxKeywords,
			MinLength: ingest.DefaultMinLength,
			NameWords: ingest.DefaultNameWords,
		},
		Lifecycle: Lifecycle{
			MinSources: lifecycle.DefaultMinSources,
			DaysUnseen: lifecycle.DefaultDaysUnseen,
		},
	}
}

// Load reads a YAML config file over the defaults. Keys missing from the
// file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot use.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverJSON, DriverSQLite:
	default:
		return fmt.Errorf("%w: unknown store driver %q", internalerr.ErrInvalidConfig, c.Store.Driver)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("%w: store path is empty", internalerr.ErrInvalidConfig)
	}
	if c.Prefix == "" {
		return fmt.Errorf("%w: prefix is empty", internalerr.ErrInvalidConfig)
	}
	if c.Match.Threshold < 0 {
		return fmt.Errorf("%w: threshold must be >= 0", internalerr.ErrInvalidConfig)
	}
	if c.Match.CosineWeight < 0 || c.Match.KeywordWeight < 0 {
		return fmt.Errorf("%w: match weights must be >= 0", internalerr.ErrInvalidConfig)
	}
	if c.Keywords.Max < 1 || c.Keywords.MinLength < 1 || c.Keywords.NameWords < 1 {
		return fmt.Errorf("%w: keyword settings must be >= 1", internalerr.ErrInvalidConfig)
	}
	if c.Lifecycle.MinSources < 1 {
		return fmt.Errorf("%w: min_sources must be >= 1", internalerr.ErrInvalidConfig)
	}
	if c.Lifecycle.DaysUnseen < 0 {
		return fmt.Errorf("%w: days_unseen must be >= 0", internalerr.ErrInvalidConfig)
	}
	return nil
}

// Weights returns the match weights as a rank.Weights.
func (c Config) Weights() rank.Weights {
	return rank.Weights{Cosine: c.Match.CosineWeight, Keyword: c.Match.KeywordWeight}
}

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}

	return &sl, nil
}
