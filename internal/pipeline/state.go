// internal/pipeline/state.go
package pipeline

import (
	"fmt"

	"support-pipeline/internal/models"
)

// State identifies a position in the evaluation workflow.
type State string

const (
	StateStart        State = "start"
	StateValidating   State = "validating"
	StateInferring    State = "inferring"
	StateDeciding     State = "deciding"
	StateRecommending State = "recommending"
	StateDone         State = "done"
)

// Transition is one edge of the workflow graph. The first transition
// whose predicate accepts the record wins; a nil predicate always
// matches.
type Transition struct {
	From      State
	Predicate func(*models.ApplicationRecord) bool
	To        State
}

// Branch predicates read only the merged record, never stage-internal
// state.
var transitions = []Transition{
	{From: StateStart, To: StateValidating},
	{
		From:      StateValidating,
		Predicate: func(r *models.ApplicationRecord) bool { return r.Verdict == models.VerdictRejected },
		To:        StateDone,
	},
	{
		From:      StateValidating,
		Predicate: func(r *models.ApplicationRecord) bool { return r.Verdict == models.VerdictValidated },
		To:        StateInferring,
	},
	{From: StateInferring, To: StateDeciding},
	{
		From:      StateDeciding,
		Predicate: func(r *models.ApplicationRecord) bool { return r.Outcome == models.OutcomeAccepted },
		To:        StateRecommending,
	},
	{
		From:      StateDeciding,
		Predicate: func(r *models.ApplicationRecord) bool { return r.Outcome.IsTerminal() },
		To:        StateDone,
	},
	{From: StateRecommending, To: StateDone},
}

// Next evaluates the transition table for the current state against
// the record. An unmatched state means the record is in a shape the
// graph does not account for.
func Next(from State, rec *models.ApplicationRecord) (State, error) {
	for _, t := range transitions {
		if t.From != from {
			continue
		}
		if t.Predicate == nil || t.Predicate(rec) {
			return t.To, nil
		}
	}
	return "", fmt.Errorf("no transition from state %q (verdict=%s outcome=%s)", from, rec.Verdict, rec.Outcome)
}
