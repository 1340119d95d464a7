// Package taxonomy defines the persisted taxonomy document and its entries.
//
// A Document is the single root aggregate: a version stamp, a last-updated
// timestamp and an insertion-ordered map of code id to Entry. Insertion order
// is part of the data model because it breaks ties when matching.
package taxonomy

import (
	"fmt"
	"math/big"
	"regexp"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Date and timestamp layouts used in the document. Dates compare
// chronologically as plain strings.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02T15:04:05Z"

	// MissingLastSeen stands in for entries that never recorded last_seen.
	MissingLastSeen = "2000-01-01"

	DefaultVersion = "2.0"
	DefaultPrefix  = "SCT"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusCandidate  Status = "candidate"
	StatusConfirmed  Status = "confirmed"
	StatusDeprecated Status = "deprecated"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCandidate, StatusConfirmed, StatusDeprecated:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is allowed.
// Deprecated is terminal.
func (s Status) CanTransition(next Status) bool {
	switch next {
	case StatusConfirmed:
		return s == StatusCandidate
	case StatusDeprecated:
		return s == StatusCandidate || s == StatusConfirmed
	}
	return false
}

// Evidence is one source-attributed observation. Records are append-only.
type Evidence struct {
	Source      string `json:"source"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// Entry is one technique definition.
type Entry struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Keywords      []string   `json:"keywords"`
	EmbeddingText string     `json:"embedding_text"`
	Evidence      []Evidence `json:"evidence"`
	Status        Status     `json:"status"`
	Created       string     `json:"created"`
	LastSeen      string     `json:"last_seen"`
}

// DistinctSources counts the distinct evidence sources of e.
func (e *Entry) DistinctSources() int {
	seen := make(map[string]struct{}, len(e.Evidence))
	for _, ev := range e.Evidence {
		seen[ev.Source] = struct{}{}
	}
	return len(seen)
}

// LastSeenOrDefault returns LastSeen, or MissingLastSeen when it is empty.
func (e *Entry) LastSeenOrDefault() string {
	if e.LastSeen == "" {
		return MissingLastSeen
	}
	return e.LastSeen
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Keywords = append(make([]string, 0, len(e.Keywords)), e.Keywords...)
	c.Evidence = append(make([]Evidence, 0, len(e.Evidence)), e.Evidence...)
	return &c
}

// Codes is the insertion-ordered code id → entry map.
type Codes = orderedmap.OrderedMap[string, *Entry]

// Document is the persisted taxonomy.
type Document struct {
	Version     string `json:"version"`
	LastUpdated string `json:"last_updated"`
	Codes       *Codes `json:"codes"`
}

// NewDocument returns an empty document with the given version.
func NewDocument(version string) *Document {
	if version == "" {
		version = DefaultVersion
	}
	return &Document{
		Version: version,
		Codes:   orderedmap.New[string, *Entry](),
	}
}

// Len returns the number of entries.
func (d *Document) Len() int {
	if d.Codes == nil {
		return 0
	}
	return d.Codes.Len()
}

// Get looks up an entry by code id.
func (d *Document) Get(id string) (*Entry, bool) {
	if d.Codes == nil {
		return nil, false
	}
	return d.Codes.Get(id)
}

// Entries returns all entries in insertion order.
func (d *Document) Entries() []*Entry {
	out := make([]*Entry, 0, d.Len())
	if d.Codes == nil {
		return out
	}
	for pair := d.Codes.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// IDs returns all code ids in insertion order.
func (d *Document) IDs() []string {
	out := make([]string, 0, d.Len())
	if d.Codes == nil {
		return out
	}
	for pair := d.Codes.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Add appends a new entry. Existing ids are rejected.
func (d *Document) Add(e *Entry) error {
	if d.Codes == nil {
		d.Codes = orderedmap.New[string, *Entry]()
	}
	if _, exists := d.Codes.Get(e.ID); exists {
		return fmt.Errorf("code %s already exists", e.ID)
	}
	d.Codes.Set(e.ID, e)
	return nil
}

// Touch stamps LastUpdated with now.
func (d *Document) Touch(now time.Time) {
	d.LastUpdated = now.UTC().Format(TimestampLayout)
}

// Clone returns a deep copy of d that preserves entry order.
func (d *Document) Clone() *Document {
	c := NewDocument(d.Version)
	c.LastUpdated = d.LastUpdated
	if d.Codes == nil {
		return c
	}
	for pair := d.Codes.Oldest(); pair != nil; pair = pair.Next() {
		c.Codes.Set(pair.Key, pair.Value.Clone())
	}
	return c
}

// NextID returns prefix-(max existing numeric suffix + 1), zero-padded to
// three digits. Ids that do not start with prefix- are ignored, and gaps
// are never reused. Suffixes are compared as arbitrary-precision integers.
func (d *Document) NextID(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-(\d+)`)
	max := new(big.Int)
	n := new(big.Int)
	for _, id := range d.IDs() {
		m := re.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		n.SetString(m[1], 10)
		if n.Cmp(max) > 0 {
			max.Set(n)
		}
	}
	return fmt.Sprintf("%s-%03d", prefix, max.Add(max, big.NewInt(1)))
}

// FormatDate renders t as a UTC calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
