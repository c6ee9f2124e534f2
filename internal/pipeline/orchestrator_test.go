package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-pipeline/internal/classifier"
	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/models"
	"support-pipeline/internal/pipeline"
	"support-pipeline/internal/stages/advisor"
	"support-pipeline/internal/stages/decider"
	"support-pipeline/internal/stages/inferencer"
	"support-pipeline/internal/stages/validator"
)

type stubClassifier struct {
	prediction *classifier.Prediction
	err        error
	calls      int
}

func (s *stubClassifier) Predict(_ context.Context, _ *models.FeatureVector) (*classifier.Prediction, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.prediction, nil
}

type stubGenerator struct {
	text string
	err  error
}

func (s *stubGenerator) Generate(_ context.Context, _ string) (string, error) {
	return s.text, s.err
}

type memoryStore struct {
	saveErr     error
	auditErr    error
	saves       int
	auditStages []string
}

func (m *memoryStore) SaveApplication(_ context.Context, _ *models.ApplicationRecord) error {
	m.saves++
	return m.saveErr
}

func (m *memoryStore) AppendAuditEntry(_ context.Context, _ string, entry models.AuditEntry) error {
	if m.auditErr != nil {
		return m.auditErr
	}
	m.auditStages = append(m.auditStages, entry.StageName)
	return nil
}

type panicStage struct{ name string }

func (p *panicStage) Name() string { return p.name }
func (p *panicStage) Execute(_ context.Context, _ *models.ApplicationRecord) (*pipeline.Result, error) {
	panic("malformed record shape")
}

// conflictStage returns an update the record will refuse to apply.
type conflictStage struct{ name string }

func (c *conflictStage) Name() string { return c.name }
func (c *conflictStage) Execute(_ context.Context, _ *models.ApplicationRecord) (*pipeline.Result, error) {
	return &pipeline.Result{
		Description: "advisory prepared",
		Update:      &models.StageUpdate{Outcome: models.OutcomeRejected},
	}, nil
}

func newOrchestrator(t *testing.T, clf classifier.Classifier, gen *stubGenerator, store pipeline.Persistence) *pipeline.Orchestrator {
	log := logger.NewTestLogger(t)
	return pipeline.New(
		validator.NewHandler(validator.DefaultConfig(), log),
		inferencer.NewHandler(inferencer.DefaultConfig(), clf, log),
		decider.NewHandler(decider.DefaultConfig(), gen, log),
		advisor.NewHandler(advisor.DefaultConfig(), gen, log),
		store,
		log,
	)
}

func consistentRecord() *models.ApplicationRecord {
	return models.NewApplicationRecord("app-001", models.FormFields{
		Name:             "Sara Ahmed",
		Age:              34,
		FamilySize:       5,
		Dependents:       4,
		EmploymentStatus: "Employed",
	}, map[string]string{
		models.DocIdentity:      "Family: 5, Identity: Pass",
		models.DocBankStatement: "Salary: 4,000.00, Balance: 12,340.00, Identity: Pass",
		models.DocCreditReport:  "Income: 4,000.00, Savings: 8,000.00, Identity: Pass",
	})
}

func auditStages(rec *models.ApplicationRecord) []string {
	stages := make([]string, len(rec.AuditTrail))
	for i, e := range rec.AuditTrail {
		stages[i] = e.StageName
	}
	return stages
}

// Scenario A: consistent documents, positive label, low income and
// four dependents land on the financial support pathway.
func TestRunAcceptedEndToEnd(t *testing.T) {
	clf := &stubClassifier{prediction: &classifier.Prediction{Label: 1, Confidence: 0.91}}
	gen := &stubGenerator{text: "Generated advisory text."}
	store := &memoryStore{}

	rec, err := newOrchestrator(t, clf, gen, store).Run(context.Background(), consistentRecord())
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeAccepted, rec.Outcome)
	assert.Equal(t, models.VerdictValidated, rec.Verdict)
	assert.Equal(t, "Congratulations Sara Ahmed, your application is accepted.", rec.FinalDecision)
	assert.Equal(t, models.PathwayFinancialSupport, rec.Pathway)
	assert.NotEmpty(t, rec.Recommendation)
	assert.NotEqual(t, models.RecommendationNA, rec.Recommendation)

	assert.Equal(t, []string{"validator", "inferencer", "decider", "advisor"}, auditStages(rec))
	assert.Equal(t, []string{"validator", "inferencer", "decider", "advisor"}, store.auditStages)
	assert.Equal(t, 1, store.saves)
}

// Scenario B: a gross income mismatch rejects before the classifier is
// ever invoked.
func TestRunRejectedBeforeInference(t *testing.T) {
	clf := &stubClassifier{prediction: &classifier.Prediction{Label: 1, Confidence: 0.9}}
	gen := &stubGenerator{text: "unused"}

	rec := consistentRecord()
	rec.Documents[models.DocBankStatement] = "Salary: 5,000.00, Identity: Pass"
	rec.Documents[models.DocCreditReport] = "Income: 18,000.00, Identity: Pass"

	out, err := newOrchestrator(t, clf, gen, &memoryStore{}).Run(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeRejected, out.Outcome)
	require.NotEmpty(t, out.ValidationReasons)
	assert.Contains(t, out.ValidationReasons[0], "salary mismatch")
	assert.Equal(t, models.RecommendationNA, out.Recommendation)

	assert.Equal(t, 0, clf.calls, "classifier must not run after rejection")
	assert.Equal(t, []string{"validator"}, auditStages(out))
}

// Scenario C: classifier unavailability degrades to a flagged
// non-eligible prediction and a soft decline, never an acceptance.
func TestRunClassifierUnavailableSoftDeclines(t *testing.T) {
	clf := &stubClassifier{err: classifier.ErrModelNotLoaded}
	gen := &stubGenerator{text: "Generated explanation."}

	out, err := newOrchestrator(t, clf, gen, &memoryStore{}).Run(context.Background(), consistentRecord())
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSoftDeclined, out.Outcome)
	assert.True(t, out.ClassifierUnavailable)
	require.NotNil(t, out.Label)
	assert.Equal(t, 0, *out.Label)
	assert.Equal(t, 0.0, *out.Confidence)
	assert.Equal(t, models.RecommendationNA, out.Recommendation)

	// The degradation is visible in the inferencer audit entry.
	assert.Equal(t, []string{"validator", "inferencer", "decider"}, auditStages(out))
	assert.Equal(t, true, out.AuditTrail[1].Output["classifierUnavailable"])
}

func TestRunGenuineNegativeIsNotFlagged(t *testing.T) {
	clf := &stubClassifier{prediction: &classifier.Prediction{Label: 0, Confidence: 0.7}}
	gen := &stubGenerator{text: "Generated explanation."}

	out, err := newOrchestrator(t, clf, gen, &memoryStore{}).Run(context.Background(), consistentRecord())
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSoftDeclined, out.Outcome)
	assert.False(t, out.ClassifierUnavailable)
	_, flagged := out.AuditTrail[1].Output["classifierUnavailable"]
	assert.False(t, flagged)
}

func TestRunStagePanicBecomesErrorOutcome(t *testing.T) {
	gen := &stubGenerator{text: "ok"}
	log := logger.NewTestLogger(t)

	orch := pipeline.New(
		validator.NewHandler(validator.DefaultConfig(), log),
		&panicStage{name: "inferencer"},
		decider.NewHandler(decider.DefaultConfig(), gen, log),
		advisor.NewHandler(advisor.DefaultConfig(), gen, log),
		nil,
		log,
	)

	out, err := orch.Run(context.Background(), consistentRecord())
	require.Error(t, err)

	assert.Equal(t, models.OutcomeError, out.Outcome)
	assert.Equal(t, "inferencer", out.FailedStage)
	assert.NotEmpty(t, out.FinalDecision, "error outcome still carries a human-readable message")

	// The failed execution still appended its audit entry.
	assert.Equal(t, []string{"validator", "inferencer"}, auditStages(out))
}

func TestRunRefusesTerminalRecord(t *testing.T) {
	clf := &stubClassifier{prediction: &classifier.Prediction{Label: 1, Confidence: 0.91}}
	gen := &stubGenerator{text: "ok"}
	store := &memoryStore{}
	orch := newOrchestrator(t, clf, gen, store)

	rec, err := orch.Run(context.Background(), consistentRecord())
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAccepted, rec.Outcome)
	trailLen := len(rec.AuditTrail)
	calls := clf.calls

	// Re-running a decided record must leave it untouched.
	out, err := orch.Run(context.Background(), rec)
	require.Error(t, err)
	assert.Equal(t, models.OutcomeAccepted, out.Outcome)
	assert.Len(t, out.AuditTrail, trailLen)
	assert.Equal(t, calls, clf.calls, "no stage runs against a terminal record")
	assert.Equal(t, 1, store.saves)
}

// When a stage executes but its result conflicts with the record, the
// execution still gets its audit entry before the run fails.
func TestRunUnappliableStageResultIsAudited(t *testing.T) {
	clf := &stubClassifier{prediction: &classifier.Prediction{Label: 1, Confidence: 0.91}}
	gen := &stubGenerator{text: "ok"}
	log := logger.NewTestLogger(t)

	orch := pipeline.New(
		validator.NewHandler(validator.DefaultConfig(), log),
		inferencer.NewHandler(inferencer.DefaultConfig(), clf, log),
		decider.NewHandler(decider.DefaultConfig(), gen, log),
		&conflictStage{name: "advisor"},
		nil,
		log,
	)

	out, err := orch.Run(context.Background(), consistentRecord())
	require.Error(t, err)

	assert.Equal(t, models.OutcomeError, out.Outcome)
	assert.Equal(t, "advisor", out.FailedStage)
	assert.Equal(t, []string{"validator", "inferencer", "decider", "advisor"}, auditStages(out))
	assert.Contains(t, out.AuditTrail[3].Description, "could not be applied")
}

func TestRunOutcomeIsMonotonic(t *testing.T) {
	clf := &stubClassifier{prediction: &classifier.Prediction{Label: 1, Confidence: 0.9}}
	gen := &stubGenerator{text: "ok"}

	rec := consistentRecord()
	out, err := newOrchestrator(t, clf, gen, &memoryStore{}).Run(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAccepted, out.Outcome)

	// A terminal record refuses further outcome transitions.
	err = out.Merge(&models.StageUpdate{Outcome: models.OutcomeRejected})
	assert.Error(t, err)
	assert.Equal(t, models.OutcomeAccepted, out.Outcome)
}

func TestRunPersistenceFailureIsAWarningNotAnError(t *testing.T) {
	clf := &stubClassifier{prediction: &classifier.Prediction{Label: 1, Confidence: 0.9}}
	gen := &stubGenerator{text: "ok"}
	store := &memoryStore{auditErr: errors.New("connection refused"), saveErr: errors.New("connection refused")}

	out, err := newOrchestrator(t, clf, gen, store).Run(context.Background(), consistentRecord())
	require.NoError(t, err, "persistence failure must not fail the pipeline")

	assert.Equal(t, models.OutcomeAccepted, out.Outcome)
	assert.NotEmpty(t, out.Warnings)
	// In-memory audit trail is complete regardless of the sink.
	assert.Equal(t, []string{"validator", "inferencer", "decider", "advisor"}, auditStages(out))
}

func TestRunWithoutStoreIsInMemoryOnly(t *testing.T) {
	clf := &stubClassifier{prediction: &classifier.Prediction{Label: 0, Confidence: 0.6}}
	gen := &stubGenerator{err: errors.New("generator down")}

	out, err := newOrchestrator(t, clf, gen, nil).Run(context.Background(), consistentRecord())
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSoftDeclined, out.Outcome)
	assert.NotEmpty(t, out.Explanation, "fallback explanation substitutes for the generator")
	assert.Empty(t, out.Warnings)
}
