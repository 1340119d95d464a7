package taxonomy

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cognicore/evolve/pkg/evolve/internalerr"
)

// Decode parses a JSON taxonomy document. Any parse or structural problem
// is reported as internalerr.ErrMalformed.
func Decode(data []byte) (*Document, error) {
	doc := NewDocument("")
	doc.Version = ""
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrMalformed, err)
	}
	if err := doc.normalize(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Encode renders doc as two-space indented JSON with a trailing newline.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode taxonomy: %w", err)
	}
	return buf.Bytes(), nil
}

// normalize fills defaults after decoding and rejects entries that cannot
// take part in matching or lifecycle checks.
func (d *Document) normalize() error {
	if d.Codes == nil {
		d.Codes = NewDocument("").Codes
	}
	for pair := d.Codes.Oldest(); pair != nil; pair = pair.Next() {
		e := pair.Value
		if e == nil {
			return fmt.Errorf("%w: code %s is null", internalerr.ErrMalformed, pair.Key)
		}
		// The map key is the code id; a differing id field is overwritten.
		e.ID = pair.Key
		if e.Status == "" {
			e.Status = StatusCandidate
		}
		if !e.Status.Valid() {
			return fmt.Errorf("%w: code %s has unknown status %q", internalerr.ErrMalformed, pair.Key, e.Status)
		}
		if e.Keywords == nil {
			e.Keywords = []string{}
		}
		if e.Evidence == nil {
			e.Evidence = []Evidence{}
		}
	}
	return nil
}
