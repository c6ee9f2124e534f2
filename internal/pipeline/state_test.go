package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-pipeline/internal/models"
)

func TestNextTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		verdict models.Verdict
		outcome models.Outcome
		want    State
	}{
		{"start always validates", StateStart, models.VerdictPending, models.OutcomePending, StateValidating},
		{"validated proceeds to inference", StateValidating, models.VerdictValidated, models.OutcomePending, StateInferring},
		{"rejected terminates", StateValidating, models.VerdictRejected, models.OutcomeRejected, StateDone},
		{"inference always proceeds to decision", StateInferring, models.VerdictValidated, models.OutcomePending, StateDeciding},
		{"accepted proceeds to recommendation", StateDeciding, models.VerdictValidated, models.OutcomeAccepted, StateRecommending},
		{"soft decline terminates", StateDeciding, models.VerdictValidated, models.OutcomeSoftDeclined, StateDone},
		{"recommendation terminates", StateRecommending, models.VerdictValidated, models.OutcomeAccepted, StateDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := models.NewApplicationRecord("app-001", models.FormFields{}, nil)
			rec.Verdict = tt.verdict
			rec.Outcome = tt.outcome

			got, err := Next(tt.from, rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextUnmatchedStateIsAnError(t *testing.T) {
	rec := models.NewApplicationRecord("app-001", models.FormFields{}, nil)

	// A pending verdict after validation means the stage never ran.
	_, err := Next(StateValidating, rec)
	assert.Error(t, err)

	_, err = Next(StateDone, rec)
	assert.Error(t, err)
}

func TestNextDecidingWithPendingOutcomeIsAnError(t *testing.T) {
	rec := models.NewApplicationRecord("app-001", models.FormFields{}, nil)
	rec.Verdict = models.VerdictValidated

	_, err := Next(StateDeciding, rec)
	assert.Error(t, err)
}
