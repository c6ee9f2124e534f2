// internal/stages/inferencer/handler.go

// Package inferencer normalizes the applicant into a feature vector
// and obtains the eligibility prediction. A broken or absent classifier
// degrades to a non-eligible prediction flagged as such; it never fails
// the pipeline.
package inferencer

import (
	"context"

	"support-pipeline/internal/classifier"
	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/common/metrics"
	"support-pipeline/internal/features"
	"support-pipeline/internal/models"
	"support-pipeline/internal/pipeline"
)

const StageName = "inferencer"

type Handler struct {
	config     *Config
	classifier classifier.Classifier
	logger     logger.Logger
}

func NewHandler(config *Config, clf classifier.Classifier, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		classifier: clf,
		logger:     log.WithFields(map[string]interface{}{"stage": StageName}),
	}
}

func (h *Handler) Name() string { return StageName }

func (h *Handler) Execute(ctx context.Context, rec *models.ApplicationRecord) (*pipeline.Result, error) {
	fv := rec.Features
	if fv == nil {
		fv = features.Normalize(rec.Form, rec.Documents)
	}

	callCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	update := &models.StageUpdate{Features: fv}
	output := map[string]interface{}{}
	description := "Eligibility predicted"

	prediction, err := h.classifier.Predict(callCtx, fv)
	if err != nil {
		// Fail safe toward non-eligibility. The flag keeps this
		// distinguishable from a genuine negative prediction.
		metrics.DegradedEvents.WithLabelValues("classifier").Inc()
		h.logger.Warn("classifier unavailable, defaulting to non-eligible", map[string]interface{}{
			"applicationId": rec.ApplicationID,
			"error":         err.Error(),
		})

		label := 0
		confidence := 0.0
		update.Label = &label
		update.Confidence = &confidence
		update.ClassifierUnavailable = true

		description = "Classifier unavailable; defaulted to non-eligible prediction"
		output["classifierUnavailable"] = true
		output["error"] = err.Error()
	} else {
		update.Label = &prediction.Label
		update.Confidence = &prediction.Confidence
		output["confidence"] = prediction.Confidence
	}

	output["label"] = *update.Label

	return &pipeline.Result{
		Update:      update,
		Description: description,
		Input:       fv.Snapshot(),
		Output:      output,
	}, nil
}
