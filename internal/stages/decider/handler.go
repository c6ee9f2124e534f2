// internal/stages/decider/handler.go

// Package decider maps the classifier output to a terminal outcome and
// phrases the applicant-facing explanation. The outcome mapping is
// deterministic; only the explanation wording involves the text
// generator, and that call degrades to a deterministic fallback.
package decider

import (
	"context"
	"fmt"

	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/common/metrics"
	"support-pipeline/internal/features"
	"support-pipeline/internal/genai"
	"support-pipeline/internal/models"
	"support-pipeline/internal/pipeline"
)

const StageName = "decider"

type Handler struct {
	config    *Config
	generator genai.Generator
	logger    logger.Logger
}

func NewHandler(config *Config, gen genai.Generator, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		generator: gen,
		logger:    log.WithFields(map[string]interface{}{"stage": StageName}),
	}
}

func (h *Handler) Name() string { return StageName }

func (h *Handler) Execute(ctx context.Context, rec *models.ApplicationRecord) (*pipeline.Result, error) {
	fv := rec.Features
	if fv == nil {
		// Upstream should have cached the vector; reconstruct from the
		// raw inputs rather than abort.
		fv = features.Normalize(rec.Form, rec.Documents)
	}

	label := 0
	if rec.Label != nil {
		label = *rec.Label
	}
	confidence := 0.0
	if rec.Confidence != nil {
		confidence = *rec.Confidence
	}

	update := &models.StageUpdate{Features: fv}
	var decision string
	if label == 1 {
		update.Outcome = models.OutcomeAccepted
		decision = fmt.Sprintf("Congratulations %s, your application is accepted.", rec.Form.Name)
	} else {
		update.Outcome = models.OutcomeSoftDeclined
		decision = fmt.Sprintf("Sorry %s, your application is soft declined.", rec.Form.Name)
		update.Recommendation = models.RecommendationNA
	}
	update.FinalDecision = decision

	explanation, degraded := h.explain(ctx, rec, fv, update.Outcome, confidence)
	update.Explanation = explanation

	description := fmt.Sprintf("Decision resolved: %s", update.Outcome)
	output := map[string]interface{}{
		"outcome":     string(update.Outcome),
		"decision":    decision,
		"explanation": explanation,
	}
	if degraded {
		description += " (explanation fallback used)"
		output["explanationFallback"] = true
	}

	return &pipeline.Result{
		Update:      update,
		Description: description,
		Input: map[string]interface{}{
			"label":                 label,
			"confidence":            confidence,
			"classifierUnavailable": rec.ClassifierUnavailable,
		},
		Output: output,
	}, nil
}

// explain asks the text generator to phrase the decision from the
// applicant's actual feature values. The second return reports whether
// the deterministic fallback was substituted.
func (h *Handler) explain(ctx context.Context, rec *models.ApplicationRecord, fv *models.FeatureVector, outcome models.Outcome, confidence float64) (string, bool) {
	callCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	prompt := buildExplanationPrompt(rec.Form.Name, fv, outcome, confidence)
	text, err := h.generator.Generate(callCtx, prompt)
	if err != nil {
		metrics.DegradedEvents.WithLabelValues("explanation-generation").Inc()
		h.logger.Warn("explanation generation failed, using fallback", map[string]interface{}{
			"applicationId": rec.ApplicationID,
			"error":         err.Error(),
		})
		return fallbackExplanation(fv, outcome), true
	}
	return text, false
}

func buildExplanationPrompt(name string, fv *models.FeatureVector, outcome models.Outcome, confidence float64) string {
	return fmt.Sprintf(
		"You are a social support case officer. Explain in two sentences, addressed to the applicant, "+
			"why the application outcome is %s. Use only these facts: "+
			"applicant name %s, age %d, marital status %s, family size %d, dependents %d, "+
			"monthly income %.2f, total savings %.2f, property value %.2f, "+
			"disability %t, medical severity %d, employment status %s, model confidence %.2f. "+
			"Do not invent thresholds or facts.",
		outcome, name, fv.Age, fv.MaritalStatus, fv.FamilySize, fv.Dependents,
		fv.MonthlyIncome, fv.TotalSavings, fv.PropertyValue,
		fv.HasDisability, fv.MedicalSeverity, fv.EmploymentStatus, confidence,
	)
}

// fallbackExplanation is deterministic over the same structured inputs
// the prompt uses.
func fallbackExplanation(fv *models.FeatureVector, outcome models.Outcome) string {
	if outcome == models.OutcomeAccepted {
		return fmt.Sprintf(
			"Your application was accepted based on your declared circumstances: monthly income %.2f, family size %d with %d dependents, and employment status %q.",
			fv.MonthlyIncome, fv.FamilySize, fv.Dependents, fv.EmploymentStatus,
		)
	}
	return fmt.Sprintf(
		"Your application did not meet the eligibility criteria at this time based on monthly income %.2f, family size %d with %d dependents, and employment status %q. You may reapply with updated documents.",
		fv.MonthlyIncome, fv.FamilySize, fv.Dependents, fv.EmploymentStatus,
	)
}
