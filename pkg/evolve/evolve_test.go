package evolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/evolve/pkg/evolve/internalerr"
	"github.com/cognicore/evolve/pkg/evolve/lifecycle"
	"github.com/cognicore/evolve/pkg/evolve/store/jsonfile"
	"github.com/cognicore/evolve/pkg/evolve/store/memstore"
	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func entry(id, text string, keywords ...string) *taxonomy.Entry {
	return &taxonomy.Entry{
		ID:            id,
		Name:          id,
		Description:   text,
		Keywords:      keywords,
		EmbeddingText: text,
		Evidence:      []taxonomy.Evidence{{Source: "seed", Description: text, Date: "2026-01-01"}},
		Status:        taxonomy.StatusCandidate,
		Created:       "2026-01-01",
		LastSeen:      "2026-01-01",
	}
}

func newTestEngine(t *testing.T, entries ...*taxonomy.Entry) (*Engine, *memstore.Store) {
	t.Helper()
	doc := taxonomy.NewDocument("2.0")
	for _, e := range entries {
		if err := doc.Add(e); err != nil {
			t.Fatal(err)
		}
	}
	st := memstore.New(doc)
	eng := New(Options{Store: st, Now: func() time.Time { return fixedNow }})
	return eng, st
}

func exported(t *testing.T, eng *Engine) *taxonomy.Document {
	t.Helper()
	doc, err := eng.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	return doc
}

func TestProposeEmptyTaxonomyCreatesFirstCode(t *testing.T) {
	eng, st := newTestEngine(t)
	res, err := eng.Propose(context.Background(), ProposeRequest{
		Description: "completely novel description X",
		Source:      "paper-A",
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	want := Result{
		Action: ActionCreatedCandidate,
		CodeID: "SCT-001",
		Name:   "completely novel description X",
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if st.Saves() != 1 {
		t.Errorf("Saves = %d, want 1", st.Saves())
	}

	doc := exported(t, eng)
	got, ok := doc.Get("SCT-001")
	if !ok {
		t.Fatal("SCT-001 not persisted")
	}
	wantEntry := &taxonomy.Entry{
		ID:            "SCT-001",
		Name:          "completely novel description X",
		Description:   "completely novel description X",
		Keywords:      []string{"completely", "novel", "description"},
		EmbeddingText: "completely novel description X",
		Evidence: []taxonomy.Evidence{
			{Source: "paper-A", Description: "completely novel description X", Date: "2026-10-14"},
		},
		Status:   taxonomy.StatusCandidate,
		Created:  "2026-10-14",
		LastSeen: "2026-10-14",
	}
	if diff := cmp.Diff(wantEntry, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
	if doc.LastUpdated != "2026-10-14T09:30:00Z" {
		t.Errorf("LastUpdated = %q", doc.LastUpdated)
	}
}

func TestProposeUnrelatedUsesNextSuffix(t *testing.T) {
	eng, _ := newTestEngine(t,
		entry("SCT-007", "authority bias exploitation", "authority", "bias"),
		entry("SCT-003", "manufactured urgency deadline", "urgency", "deadline"),
		entry("OTHER-050", "ignored prefix"),
	)
	res, err := eng.Propose(context.Background(), ProposeRequest{
		Description: "quantum chromodynamics lattice",
		Source:      "paper-B",
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if res.Action != ActionCreatedCandidate || res.CodeID != "SCT-008" {
		t.Errorf("got %+v, want created_candidate SCT-008", res)
	}
	if res.BestMatch != "" || res.BestMatchScore != 0 {
		t.Errorf("no entry should match, got %q %v", res.BestMatch, res.BestMatchScore)
	}
}

func TestProposeKeywordOverlapAddsEvidence(t *testing.T) {
	eng, _ := newTestEngine(t,
		entry("T-001", "adversary exploits authority urgency framing bias",
			"authority", "urgency", "framing", "scarcity", "reciprocity"),
	)
	res, err := eng.Propose(context.Background(), ProposeRequest{
		Description: "authority urgency framing scarcity appeal",
		Source:      "report-7",
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	want := Result{Action: ActionEvidenceAdded, CodeID: "T-001", TotalEvidence: 2}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	doc := exported(t, eng)
	if doc.Len() != 1 {
		t.Errorf("no entry should be created, have %d", doc.Len())
	}
	e, _ := doc.Get("T-001")
	last := e.Evidence[len(e.Evidence)-1]
	if last.Source != "report-7" || last.Description != "authority urgency framing scarcity appeal" || last.Date != "2026-10-14" {
		t.Errorf("unexpected evidence %+v", last)
	}
	if e.LastSeen != "2026-10-14" {
		t.Errorf("LastSeen = %s", e.LastSeen)
	}
}

func TestProposeUsesEvidenceText(t *testing.T) {
	eng, _ := newTestEngine(t,
		entry("SCT-001", "phishing lure credential harvest", "phishing", "lure", "credential", "harvest"),
	)
	_, err := eng.Propose(context.Background(), ProposeRequest{
		Description: "phishing lure credential harvest",
		Source:      "blog",
		Evidence:    "seen in a campaign targeting payroll staff",
	})
	if err != nil {
		t.Fatal(err)
	}
	e, _ := exported(t, eng).Get("SCT-001")
	if got := e.Evidence[1].Description; got != "seen in a campaign targeting payroll staff" {
		t.Errorf("evidence payload = %q", got)
	}
}

func TestProposeTieGoesToFirstInserted(t *testing.T) {
	text := "phishing lure credential harvest"
	kws := []string{"phishing", "lure", "credential", "harvest"}
	eng, _ := newTestEngine(t,
		entry("SCT-002", text, kws...),
		entry("SCT-001", text, kws...),
	)
	res, err := eng.Propose(context.Background(), ProposeRequest{Description: text, Source: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != ActionEvidenceAdded || res.CodeID != "SCT-002" {
		t.Errorf("got %+v, want evidence_added on first inserted SCT-002", res)
	}
}

func TestProposeReportsNearMiss(t *testing.T) {
	seed := entry("SCT-004", "alpha beta gamma delta", "alpha", "beta", "gamma", "delta")
	desc := "alpha zeta eta theta iota kappa lambda mu"

	eng, _ := newTestEngine(t, seed)
	res, err := eng.Propose(context.Background(), ProposeRequest{Description: desc, Source: "s"})
	if err != nil {
		t.Fatal(err)
	}
	want := Result{
		Action:         ActionCreatedCandidate,
		CodeID:         "SCT-005",
		Name:           "alpha zeta eta theta iota...",
		BestMatch:      "SCT-004",
		BestMatchScore: 0.206,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	// The same description clears a lower threshold.
	eng, _ = newTestEngine(t, seed)
	res, err = eng.Propose(context.Background(), ProposeRequest{Description: desc, Source: "s", Threshold: thresholdOf(0.2)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != ActionEvidenceAdded || res.CodeID != "SCT-004" {
		t.Errorf("got %+v, want evidence_added on SCT-004", res)
	}
}

func thresholdOf(v float64) *float64 { return &v }

func TestProposeZeroThresholdAcceptsAnyOverlap(t *testing.T) {
	seed := entry("SCT-001", "alpha beta gamma delta epsilon", "alpha", "beta")
	eng, _ := newTestEngine(t, seed)
	ctx := context.Background()

	res, err := eng.Propose(ctx, ProposeRequest{Description: "alpha omega sigma tau upsilon", Source: "s", Threshold: thresholdOf(0)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != ActionEvidenceAdded || res.CodeID != "SCT-001" {
		t.Errorf("got %+v, want evidence_added on SCT-001", res)
	}

	// No shared term at all still creates a candidate.
	res, err = eng.Propose(ctx, ProposeRequest{Description: "omega sigma", Source: "s", Threshold: thresholdOf(0)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != ActionCreatedCandidate || res.CodeID != "SCT-002" {
		t.Errorf("got %+v, want created_candidate SCT-002", res)
	}

	// Omitting the threshold uses the default and the weak overlap misses.
	eng, _ = newTestEngine(t, entry("SCT-001", "alpha beta gamma delta epsilon", "alpha", "beta"))
	res, err = eng.Propose(ctx, ProposeRequest{Description: "alpha omega sigma tau upsilon", Source: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != ActionCreatedCandidate {
		t.Errorf("default threshold should not match a weak overlap: %+v", res)
	}
}

func TestProposeDegenerateDescription(t *testing.T) {
	eng, _ := newTestEngine(t)
	for i, desc := range []string{"", "the and of to it"} {
		res, err := eng.Propose(context.Background(), ProposeRequest{Description: desc, Source: "s"})
		if err != nil {
			t.Fatalf("Propose(%q): %v", desc, err)
		}
		if res.Action != ActionCreatedCandidate || res.CodeID != fmt.Sprintf("SCT-%03d", i+1) {
			t.Errorf("Propose(%q) = %+v", desc, res)
		}
		e, _ := exported(t, eng).Get(res.CodeID)
		if e.Keywords == nil || len(e.Keywords) != 0 {
			t.Errorf("keywords = %#v, want empty list", e.Keywords)
		}
	}
}

func TestEvidenceCountMatchesCalls(t *testing.T) {
	eng, _ := newTestEngine(t, entry("SCT-001", "seed"))
	ctx := context.Background()
	for i := 2; i <= 5; i++ {
		res, err := eng.AccumulateEvidence(ctx, "SCT-001", fmt.Sprintf("src-%d", i), "more")
		if err != nil {
			t.Fatal(err)
		}
		if res.TotalEvidence != i {
			t.Errorf("call %d: total_evidence = %d", i, res.TotalEvidence)
		}
	}
}

func TestAccumulateEvidenceNotFound(t *testing.T) {
	eng, st := newTestEngine(t, entry("SCT-001", "seed"))
	_, err := eng.AccumulateEvidence(context.Background(), "SCT-999", "src", "desc")
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if st.Saves() != 0 {
		t.Errorf("not-found must not save, Saves = %d", st.Saves())
	}

	res, err := ErrorResult("SCT-999", err)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(res)
	if string(data) != `{"action":"error","message":"Code SCT-999 not found"}` {
		t.Errorf("error result = %s", data)
	}
}

func TestPromoteScenario(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Propose(ctx, ProposeRequest{Description: "novel technique", Source: "a"})
	if err != nil {
		t.Fatal(err)
	}
	id := res.CodeID
	for _, src := range []string{"b", "b", "c"} {
		if _, err := eng.AccumulateEvidence(ctx, id, src, "seen"); err != nil {
			t.Fatal(err)
		}
	}

	promoted, err := eng.PromoteCandidates(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]lifecycle.Promotion{{CodeID: id, Sources: 3}}, promoted); diff != "" {
		t.Errorf("promotions (-want +got):\n%s", diff)
	}
	e, _ := exported(t, eng).Get(id)
	if e.Status != taxonomy.StatusConfirmed {
		t.Errorf("status = %s", e.Status)
	}

	saves := st.Saves()
	again, err := eng.PromoteCandidates(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("confirmed entries are not rescanned, got %v", again)
	}
	if st.Saves() != saves {
		t.Error("promote with no change must not save")
	}
}

func TestPromoteNeedsDistinctSources(t *testing.T) {
	e := entry("SCT-001", "seed")
	e.Evidence = append(e.Evidence, taxonomy.Evidence{Source: "seed"}, taxonomy.Evidence{Source: "other"})
	eng, _ := newTestEngine(t, e)

	promoted, err := eng.PromoteCandidates(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(promoted) != 0 {
		t.Errorf("two distinct sources must not satisfy 3, got %v", promoted)
	}
}

func TestDeprecationScenario(t *testing.T) {
	stale := entry("SCT-001", "stale")
	stale.LastSeen = taxonomy.FormatDate(fixedNow.AddDate(0, 0, -200))
	fresh := entry("SCT-002", "fresh")
	fresh.LastSeen = taxonomy.FormatDate(fixedNow.AddDate(0, 0, -100))
	missing := entry("SCT-003", "never seen")
	missing.LastSeen = ""

	eng, st := newTestEngine(t, stale, fresh, missing)
	ctx := context.Background()

	flagged, err := eng.DeprecationCheck(ctx, 180)
	if err != nil {
		t.Fatal(err)
	}
	want := []lifecycle.Flag{
		{CodeID: "SCT-001", LastSeen: "2026-03-28"},
		{CodeID: "SCT-003", LastSeen: ""},
	}
	if diff := cmp.Diff(want, flagged); diff != "" {
		t.Errorf("flags (-want +got):\n%s", diff)
	}

	doc := exported(t, eng)
	for id, status := range map[string]taxonomy.Status{
		"SCT-001": taxonomy.StatusDeprecated,
		"SCT-002": taxonomy.StatusCandidate,
		"SCT-003": taxonomy.StatusDeprecated,
	} {
		if e, _ := doc.Get(id); e.Status != status {
			t.Errorf("%s status = %s, want %s", id, e.Status, status)
		}
	}

	saves := st.Saves()
	again, err := eng.DeprecationCheck(ctx, 180)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 || st.Saves() != saves {
		t.Errorf("second run should be a no-op, got %v", again)
	}
}

func TestMalformedStorageAborts(t *testing.T) {
	eng, st := newTestEngine(t)
	st.FailLoad(fmt.Errorf("%w: unexpected end of JSON input", internalerr.ErrMalformed))
	ctx := context.Background()

	calls := map[string]func() error{
		"propose": func() error {
			_, err := eng.Propose(ctx, ProposeRequest{Description: "x", Source: "s"})
			return err
		},
		"evidence": func() error {
			_, err := eng.AccumulateEvidence(ctx, "SCT-001", "s", "d")
			return err
		},
		"promote": func() error {
			_, err := eng.PromoteCandidates(ctx, 3)
			return err
		},
		"deprecate": func() error {
			_, err := eng.DeprecationCheck(ctx, 180)
			return err
		},
		"patterns": func() error {
			_, err := eng.GeneratePatterns(ctx, "SCT-001")
			return err
		},
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, internalerr.ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
	if st.Saves() != 0 {
		t.Errorf("malformed storage must not be overwritten, Saves = %d", st.Saves())
	}
}

func TestInvalidInput(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err1 := eng.Propose(ctx, ProposeRequest{Description: "x"})
	_, err2 := eng.Propose(ctx, ProposeRequest{Description: "x", Source: "s", Threshold: thresholdOf(-1)})
	_, err3 := eng.AccumulateEvidence(ctx, "", "s", "d")
	_, err4 := eng.AccumulateEvidence(ctx, "SCT-001", " ", "d")
	_, err5 := eng.PromoteCandidates(ctx, 0)
	_, err6 := eng.DeprecationCheck(ctx, -1)

	for i, err := range []error{err1, err2, err3, err4, err5, err6} {
		if !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("case %d: expected ErrInvalidInput, got %v", i+1, err)
		}
	}
}

func TestGeneratePatterns(t *testing.T) {
	eng, _ := newTestEngine(t, entry("SCT-001", "c++ template abuse", "c++", "template"))
	ctx := context.Background()

	got, err := eng.GeneratePatterns(ctx, "SCT-001")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{`\bc\+\+\b`, `\btemplate\b`}, got); diff != "" {
		t.Errorf("patterns (-want +got):\n%s", diff)
	}
	for _, p := range got {
		if _, err := regexp.Compile(p); err != nil {
			t.Errorf("pattern %q does not compile: %v", p, err)
		}
	}

	unknown, err := eng.GeneratePatterns(ctx, "SCT-404")
	if err != nil {
		t.Fatal(err)
	}
	if unknown == nil || len(unknown) != 0 {
		t.Errorf("unknown id = %#v, want empty list", unknown)
	}
}

func TestResultJSON(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{
			name: "evidence added",
			res:  Result{Action: ActionEvidenceAdded, CodeID: "SCT-001", TotalEvidence: 4},
			want: `{"action":"evidence_added","code_id":"SCT-001","total_evidence":4}`,
		},
		{
			name: "created without match",
			res:  Result{Action: ActionCreatedCandidate, CodeID: "SCT-001", Name: "x"},
			want: `{"action":"created_candidate","code_id":"SCT-001","name":"x","best_match":null,"best_match_score":0}`,
		},
		{
			name: "created with near miss",
			res:  Result{Action: ActionCreatedCandidate, CodeID: "SCT-002", Name: "y", BestMatch: "SCT-001", BestMatchScore: 0.206},
			want: `{"action":"created_candidate","code_id":"SCT-002","name":"y","best_match":"SCT-001","best_match_score":0.206}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.res)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s\nwant %s", data, tt.want)
			}
		})
	}
}

func TestErrorResultPassesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := ErrorResult("SCT-001", boom); err != boom {
		t.Errorf("expected original error, got %v", err)
	}
}

func TestProposeRoutesByStoredKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	raw := `{"version":"2.0","codes":{"SCT-001":{"id":"SCT-1","name":"n",` +
		`"description":"watering hole lure","keywords":["watering","hole","lure"],` +
		`"embedding_text":"watering hole lure","evidence":[` +
		`{"source":"a","description":"d","date":"2026-01-01"},` +
		`{"source":"b","description":"d","date":"2026-01-01"}],` +
		`"status":"candidate","created":"2026-01-01","last_seen":"2026-01-01"}}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	eng := New(Options{Store: jsonfile.New(path, "2.0"), Now: func() time.Time { return fixedNow }})
	ctx := context.Background()

	res, err := eng.Propose(ctx, ProposeRequest{Description: "watering hole lure", Source: "c"})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	want := Result{Action: ActionEvidenceAdded, CodeID: "SCT-001", TotalEvidence: 3}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	promoted, err := eng.PromoteCandidates(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(promoted) != 1 || promoted[0].CodeID != "SCT-001" {
		t.Errorf("promotions = %+v, want SCT-001", promoted)
	}
	if e, ok := exported(t, eng).Get("SCT-001"); !ok || e.ID != "SCT-001" {
		t.Errorf("stored id should follow the key, got %+v", e)
	}
}
