// internal/stages/advisor/handler.go

// Package advisor chooses the support pathway for an accepted
// applicant and phrases the advisory text. The pathway policy is
// deterministic; an accepted applicant never leaves without a
// recommendation.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/common/metrics"
	"support-pipeline/internal/extract"
	"support-pipeline/internal/features"
	"support-pipeline/internal/genai"
	"support-pipeline/internal/models"
	"support-pipeline/internal/pipeline"
)

const StageName = "advisor"

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
		fv = features.Normalize(rec.Form, rec.Documents)
	}

	pathway, rationale := h.choosePathway(fv, rec)
	recommendation, degraded := h.advise(ctx, rec, fv, pathway, rationale)

	update := &models.StageUpdate{
		Pathway:        pathway,
		Recommendation: recommendation,
	}

	description := fmt.Sprintf("Support pathway resolved: %s", pathway)
	output := map[string]interface{}{
		"pathway":        string(pathway),
		"rationale":      rationale,
		"recommendation": recommendation,
	}
	if degraded {
		description += " (advisory fallback used)"
		output["advisoryFallback"] = true
	}

	return &pipeline.Result{
		Update:      update,
		Description: description,
		Input:       fv.Snapshot(),
		Output:      output,
	}, nil
}

// choosePathway applies the deterministic pathway policy and reports
// which criteria fired, for the audit trail and fallback wording.
func (h *Handler) choosePathway(fv *models.FeatureVector, rec *models.ApplicationRecord) (models.Pathway, []string) {
	var financial []string
	if fv.HasDisability {
		financial = append(financial, "disability present")
	}
	if fv.MedicalSeverity > h.config.SeverityThreshold {
		financial = append(financial, fmt.Sprintf("medical severity %d", fv.MedicalSeverity))
	}
	if fv.MonthlyIncome < h.config.IncomeThreshold {
		financial = append(financial, fmt.Sprintf("monthly income %.2f below %.2f", fv.MonthlyIncome, h.config.IncomeThreshold))
	}
	if fv.Dependents > h.config.DependentsThreshold {
		financial = append(financial, fmt.Sprintf("%d dependents", fv.Dependents))
	}
	if len(financial) > 0 {
		return models.PathwayFinancialSupport, financial
	}

	var enablement []string
	if isUnemployed(fv.EmploymentStatus) {
		enablement = append(enablement, "currently unemployed")
	}
	if hasWorkExperience(rec) && fv.Dependents <= h.config.DependentsThreshold {
		enablement = append(enablement, "prior work experience")
	}
	if len(enablement) > 0 {
		return models.PathwayEconomicEnablement, enablement
	}

	// Nothing fired either way; financial support is the conservative
	// default for an accepted applicant.
	return models.PathwayFinancialSupport, []string{"default pathway"}
}

func isUnemployed(status string) bool {
	return strings.Contains(strings.ToLower(status), "unemployed")
}

// hasWorkExperience reads the resume summary for an experience field.
func hasWorkExperience(rec *models.ApplicationRecord) bool {
	resume := extract.Documents(rec.Documents).Doc(models.DocResume)
	if resume.Text == "" {
		return false
	}
	exp, ok := resume.Get("Experience")
	return ok && exp != "" && exp != "None"
}

func (h *Handler) advise(ctx context.Context, rec *models.ApplicationRecord, fv *models.FeatureVector, pathway models.Pathway, rationale []string) (string, bool) {
	callCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	prompt := buildAdvisoryPrompt(rec.Form.Name, fv, pathway, rationale)
	text, err := h.generator.Generate(callCtx, prompt)
	if err != nil {
		metrics.DegradedEvents.WithLabelValues("advisory-generation").Inc()
		h.logger.Warn("advisory generation failed, using fallback", map[string]interface{}{
			"applicationId": rec.ApplicationID,
			"error":         err.Error(),
		})
		return fallbackAdvice(pathway, rationale), true
	}
	return text, false
}

func buildAdvisoryPrompt(name string, fv *models.FeatureVector, pathway models.Pathway, rationale []string) string {
	return fmt.Sprintf(
		"You are a social support advisor. Write a short recommendation for applicant %s who has been "+
			"approved for the %s pathway because of: %s. "+
			"Their situation: monthly income %.2f, %d dependents, employment status %q, medical severity %d. "+
			"Suggest concrete next steps for this pathway only.",
		name, pathway, strings.Join(rationale, "; "),
		fv.MonthlyIncome, fv.Dependents, fv.EmploymentStatus, fv.MedicalSeverity,
	)
}

// fallbackAdvice is rule-based wording derived from the same policy
// inputs, so an accepted applicant never receives an empty
// recommendation.
func fallbackAdvice(pathway models.Pathway, rationale []string) string {
	reasons := strings.Join(rationale, ", ")
	if pathway == models.PathwayFinancialSupport {
		return fmt.Sprintf("We recommend enrollment in the financial support program (%s). A case officer will contact you to set up monthly assistance.", reasons)
	}
	return fmt.Sprintf("We recommend enrollment in the economic enablement program (%s). You will be offered job placement support and vocational training options.", reasons)
}
