package evolve

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cognicore/evolve/pkg/evolve/internalerr"
)

// Action names the outcome of a propose or evidence call.
type Action string

const (
	ActionEvidenceAdded    Action = "evidence_added"
	ActionCreatedCandidate Action = "created_candidate"
	ActionError            Action = "error"
)

// Result is the structured outcome of Propose and AccumulateEvidence.
//
// Its JSON form depends on Action:
//
//	evidence_added:    {action, code_id, total_evidence}
//	created_candidate: {action, code_id, name, best_match, best_match_score}
//	error:             {action, message}
//
// best_match is null when no entry scored above zero.
type Result struct {
	Action         Action
	CodeID         string
	TotalEvidence  int
	Name           string
	BestMatch      string
	BestMatchScore float64
	Message        string
}

// ErrorResult converts a not-found error into the structured error result
// callers print instead of failing. Other errors are returned unchanged.
func ErrorResult(codeID string, err error) (Result, error) {
	if errors.Is(err, internalerr.ErrNotFound) {
		return Result{Action: ActionError, CodeID: codeID, Message: fmt.Sprintf("Code %s not found", codeID)}, nil
	}
	return Result{}, err
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Action {
	case ActionEvidenceAdded:
		return json.Marshal(struct {
			Action        Action `json:"action"`
			CodeID        string `json:"code_id"`
			TotalEvidence int    `json:"total_evidence"`
		}{r.Action, r.CodeID, r.TotalEvidence})
	case ActionCreatedCandidate:
		var best *string
		if r.BestMatch != "" {
			best = &r.BestMatch
		}
		return json.Marshal(struct {
			Action         Action  `json:"action"`
			CodeID         string  `json:"code_id"`
			Name           string  `json:"name"`
			BestMatch      *string `json:"best_match"`
			BestMatchScore float64 `json:"best_match_score"`
		}{r.Action, r.CodeID, r.Name, best, r.BestMatchScore})
	default:
		return json.Marshal(struct {
			Action  Action `json:"action"`
			Message string `json:"message"`
		}{r.Action, r.Message})
	}
}
