// Package lifecycle applies evidence accumulation, promotion and deprecation
// to a loaded taxonomy document. Nothing here touches storage: callers load
// the document, apply a transition and save it whole.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/cognicore/evolve/pkg/evolve/internalerr"
	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

// Defaults for the lifecycle checks.
const (
	DefaultMinSources = 3
	DefaultDaysUnseen = 180
)

// Promotion reports one candidate flipped to confirmed.
type Promotion struct {
	CodeID  string `json:"code_id"`
	Sources int    `json:"sources"`
}

// Flag reports one entry flipped to deprecated.
type Flag struct {
	CodeID   string `json:"code_id"`
	LastSeen string `json:"last_seen"`
}

// Accumulate appends an evidence record dated today to the entry and moves
// its last_seen to today. It returns the new evidence count.
func Accumulate(doc *taxonomy.Document, codeID, source, description, today string) (int, error) {
	e, ok := doc.Get(codeID)
	if !ok {
		return 0, fmt.Errorf("code %s: %w", codeID, internalerr.ErrNotFound)
	}
	e.Evidence = append(e.Evidence, taxonomy.Evidence{
		Source:      source,
		Description: description,
		Date:        today,
	})
	e.LastSeen = today
	return len(e.Evidence), nil
}

// Promote confirms every candidate whose evidence comes from at least
// minSources distinct sources. Other statuses are not scanned.
func Promote(doc *taxonomy.Document, minSources int) []Promotion {
	var promoted []Promotion
	for _, e := range doc.Entries() {
		if !e.Status.CanTransition(taxonomy.StatusConfirmed) {
			continue
		}
		n := e.DistinctSources()
		if n < minSources {
			continue
		}
		e.Status = taxonomy.StatusConfirmed
		promoted = append(promoted, Promotion{CodeID: e.ID, Sources: n})
	}
	return promoted
}

// Cutoff returns the calendar date daysUnseen days before now.
func Cutoff(now time.Time, daysUnseen int) string {
	return taxonomy.FormatDate(now.UTC().AddDate(0, 0, -daysUnseen))
}

// Deprecate marks every non-deprecated entry last seen before cutoff as
// deprecated. Entries already deprecated are skipped, so repeated runs with
// the same cutoff flag nothing new.
func Deprecate(doc *taxonomy.Document, cutoff string) []Flag {
	var flagged []Flag
	for _, e := range doc.Entries() {
		if !e.Status.CanTransition(taxonomy.StatusDeprecated) {
			continue
		}
		if e.LastSeenOrDefault() >= cutoff {
			continue
		}
		e.Status = taxonomy.StatusDeprecated
		flagged = append(flagged, Flag{CodeID: e.ID, LastSeen: e.LastSeen})
	}
	return flagged
}
