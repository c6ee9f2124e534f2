// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	stderrors "support-pipeline/internal/common/errors"
	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/common/metrics"
	"support-pipeline/internal/models"
)

// Persistence is the audit sink and snapshot store the orchestrator
// writes through. Failures are downgraded to record warnings, never
// pipeline errors.
type Persistence interface {
	SaveApplication(ctx context.Context, rec *models.ApplicationRecord) error
	AppendAuditEntry(ctx context.Context, applicationID string, entry models.AuditEntry) error
}

// Orchestrator drives one application record through the workflow
// graph. It owns the single mutation point: stage results are merged
// here and nowhere else.
type Orchestrator struct {
	stages map[State]Stage
	store  Persistence
	logger logger.Logger
}

// New wires the four stages to their workflow states. store may be nil
// for in-memory-only runs.
func New(validator, inferencer, decider, advisor Stage, store Persistence, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		stages: map[State]Stage{
			StateValidating:   validator,
			StateInferring:    inferencer,
			StateDeciding:     decider,
			StateRecommending: advisor,
		},
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// Run executes the pipeline to a terminal outcome. The returned record
// always carries a terminal outcome; the error is non-nil only when a
// stage failed fatally, in which case the record's outcome is Error
// and FailedStage names the origin.
func (o *Orchestrator) Run(ctx context.Context, rec *models.ApplicationRecord) (*models.ApplicationRecord, error) {
	// A terminal record is immutable; re-running it must not touch the
	// outcome, the audit trail, or the stored snapshot.
	if rec.Outcome.IsTerminal() {
		return rec, fmt.Errorf("application %s already holds terminal outcome %s", rec.ApplicationID, rec.Outcome)
	}

	metrics.PipelinesActive.Inc()
	defer metrics.PipelinesActive.Dec()

	o.logger.Info("pipeline started", map[string]interface{}{
		"applicationId": rec.ApplicationID,
	})

	state := StateStart
	for {
		next, err := Next(state, rec)
		if err != nil {
			return o.fail(ctx, rec, string(state), err)
		}
		if next == StateDone {
			break
		}

		stage := o.stages[next]
		if stage == nil {
			return o.fail(ctx, rec, string(next), fmt.Errorf("no stage bound to state %q", next))
		}

		result, err := o.runStage(ctx, stage, rec)
		metrics.StageExecutions.WithLabelValues(stage.Name()).Inc()
		if err != nil {
			metrics.StageFailures.WithLabelValues(stage.Name(), errorCode(err)).Inc()
			o.audit(ctx, rec, models.AuditEntry{
				StageName:   stage.Name(),
				Description: fmt.Sprintf("Stage failed: %v", err),
				Output:      map[string]interface{}{"error": err.Error()},
			})
			return o.fail(ctx, rec, stage.Name(), err)
		}

		// The stage ran, so it gets an audit entry even when its result
		// cannot be applied to the record.
		if err := rec.Merge(result.Update); err != nil {
			metrics.StageFailures.WithLabelValues(stage.Name(), errorCode(err)).Inc()
			o.audit(ctx, rec, models.AuditEntry{
				StageName:   stage.Name(),
				Description: fmt.Sprintf("Stage result could not be applied: %v", err),
				Input:       result.Input,
				Output:      map[string]interface{}{"error": err.Error()},
			})
			return o.fail(ctx, rec, stage.Name(), err)
		}

		o.audit(ctx, rec, models.AuditEntry{
			StageName:   stage.Name(),
			Description: result.Description,
			Input:       result.Input,
			Output:      result.Output,
		})

		state = next
	}

	// Non-accepted terminal outcomes never carry a recommendation.
	if rec.Outcome != models.OutcomeAccepted && rec.Recommendation == "" {
		rec.Recommendation = models.RecommendationNA
	}

	o.persist(ctx, rec)
	metrics.PipelineOutcomes.WithLabelValues(string(rec.Outcome)).Inc()

	o.logger.Info("pipeline finished", map[string]interface{}{
		"applicationId": rec.ApplicationID,
		"outcome":       string(rec.Outcome),
	})
	return rec, nil
}

// runStage isolates a stage execution; a panic becomes a fatal stage
// error instead of taking the process down.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, rec *models.ApplicationRecord) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = stderrors.NewStagePanicError(stage.Name(), r)
		}
	}()

	start := time.Now()
	result, err = stage.Execute(ctx, rec)
	metrics.StageDuration.WithLabelValues(stage.Name()).Observe(time.Since(start).Seconds())

	if err == nil && result == nil {
		err = fmt.Errorf("stage %s returned no result", stage.Name())
	}
	return result, err
}

// fail moves the record to the Error terminal state, recording the
// originating stage. The record is still persisted best-effort so the
// failed run is visible.
func (o *Orchestrator) fail(ctx context.Context, rec *models.ApplicationRecord, stage string, cause error) (*models.ApplicationRecord, error) {
	code := stderrors.ErrorCode(errorCode(cause))
	o.logger.Error("pipeline failed", map[string]interface{}{
		"applicationId": rec.ApplicationID,
		"stage":         stage,
		"error":         cause.Error(),
		"errorCode":     string(code),
		"category":      stderrors.GetErrorCategory(code),
		"retryable":     stderrors.IsRetryableErrorCode(code),
	})

	rec.Outcome = models.OutcomeError
	rec.FailedStage = stage
	if rec.FinalDecision == "" {
		rec.FinalDecision = fmt.Sprintf("We could not complete the evaluation of your application (%s). Please contact support.", rec.ApplicationID)
	}
	if rec.Recommendation == "" {
		rec.Recommendation = models.RecommendationNA
	}

	o.persist(ctx, rec)
	metrics.PipelineOutcomes.WithLabelValues(string(models.OutcomeError)).Inc()
	return rec, cause
}

// audit appends the entry in memory and mirrors it to the store. A
// write failure degrades to a warning on the record.
func (o *Orchestrator) audit(ctx context.Context, rec *models.ApplicationRecord, entry models.AuditEntry) {
	rec.AppendAudit(entry)
	if o.store == nil {
		return
	}
	if err := o.store.AppendAuditEntry(ctx, rec.ApplicationID, rec.AuditTrail[len(rec.AuditTrail)-1]); err != nil {
		metrics.DegradedEvents.WithLabelValues("audit-store").Inc()
		rec.AddWarning("audit entry for stage %s was not persisted: %v", entry.StageName, err)
		o.logger.Warn("audit write failed", map[string]interface{}{
			"applicationId": rec.ApplicationID,
			"stage":         entry.StageName,
			"error":         err.Error(),
		})
	}
}

// persist saves the application snapshot best-effort.
func (o *Orchestrator) persist(ctx context.Context, rec *models.ApplicationRecord) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveApplication(ctx, rec); err != nil {
		metrics.DegradedEvents.WithLabelValues("application-store").Inc()
		rec.AddWarning("application snapshot was not persisted: %v", err)
		o.logger.Warn("application save failed", map[string]interface{}{
			"applicationId": rec.ApplicationID,
			"error":         err.Error(),
		})
	}
}

func errorCode(err error) string {
	var se *stderrors.StandardError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return "UNKNOWN_ERROR"
}
