// internal/stages/validator/handler.go

// Package validator cross-checks the independently submitted documents
// against each other and the declared form fields. Its verdict gates
// the rest of the pipeline: a rejection terminates the run before the
// classifier is ever invoked.
package validator

import (
	"context"
	"fmt"
	"math"

	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/extract"
	"support-pipeline/internal/models"
	"support-pipeline/internal/pipeline"
)

const StageName = "validator"

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"stage": StageName}),
	}
}

func (h *Handler) Name() string { return StageName }

// Execute runs every consistency check and reports all failures, not
// just the first. Reason text is deterministic and reproducible from
// the same inputs.
func (h *Handler) Execute(_ context.Context, rec *models.ApplicationRecord) (*pipeline.Result, error) {
	docs := extract.Documents(rec.Documents)

	var reasons []string
	reasons = append(reasons, h.identityReasons(docs)...)
	reasons = append(reasons, h.incomeReasons(docs)...)
	reasons = append(reasons, h.familySizeReasons(rec.Form, docs)...)

	update := &models.StageUpdate{}
	description := "All consistency checks passed"
	if len(reasons) > 0 {
		update.Verdict = models.VerdictRejected
		update.ValidationReasons = reasons
		update.Outcome = models.OutcomeRejected
		update.FinalDecision = fmt.Sprintf("Sorry %s, your application is rejected.", rec.Form.Name)
		description = fmt.Sprintf("Application rejected: %d consistency check(s) failed", len(reasons))
	} else {
		update.Verdict = models.VerdictValidated
	}

	h.logger.Info("validation complete", map[string]interface{}{
		"applicationId": rec.ApplicationID,
		"verdict":       string(update.Verdict),
		"reasonCount":   len(reasons),
	})

	return &pipeline.Result{
		Update:      update,
		Description: description,
		Input: map[string]interface{}{
			"declaredFamilySize": rec.Form.FamilySize,
			"documentKinds":      presentKinds(rec.Documents),
		},
		Output: map[string]interface{}{
			"verdict": string(update.Verdict),
			"reasons": reasons,
		},
	}, nil
}

// identityReasons surfaces every document whose own embedded identity
// check failed.
func (h *Handler) identityReasons(docs extract.Documents) []string {
	var reasons []string
	for _, kind := range models.DocumentKinds {
		doc := docs.Doc(kind)
		if doc.Text == "" {
			continue
		}
		id := doc.Identity()
		if !id.Checked || id.Passed {
			continue
		}
		if id.Detail != "" {
			reasons = append(reasons, fmt.Sprintf("%s: identity check failed (%s)", kind, id.Detail))
		} else {
			reasons = append(reasons, fmt.Sprintf("%s: identity check failed", kind))
		}
	}
	return reasons
}

// incomeReasons compares the bank-statement salary against the
// credit-report income. A difference of exactly the tolerance passes.
func (h *Handler) incomeReasons(docs extract.Documents) []string {
	bank := docs.Doc(models.DocBankStatement)
	credit := docs.Doc(models.DocCreditReport)
	if bank.Text == "" || credit.Text == "" {
		return nil
	}
	if _, ok := bank.Get("Salary"); !ok {
		return nil
	}
	if _, ok := credit.Get("Income"); !ok {
		return nil
	}

	bankIncome := bank.Number("Salary")
	creditIncome := credit.Number("Income")
	diff := math.Abs(bankIncome - creditIncome)
	if diff > h.config.IncomeTolerance {
		return []string{fmt.Sprintf(
			"salary mismatch between bank statement (%.2f) and credit report (%.2f), difference %.2f exceeds tolerance %.2f",
			bankIncome, creditIncome, diff, h.config.IncomeTolerance,
		)}
	}
	return nil
}

// familySizeReasons compares the declared family size against the
// identity document. Exact integer match, no tolerance.
func (h *Handler) familySizeReasons(form models.FormFields, docs extract.Documents) []string {
	identity := docs.Doc(models.DocIdentity)
	if identity.Text == "" {
		return nil
	}
	if _, ok := identity.Get("Family"); !ok {
		return nil
	}

	idFamily := identity.Int("Family")
	if idFamily != form.FamilySize {
		return []string{fmt.Sprintf(
			"family size mismatch: form declares %d but identity document shows %d",
			form.FamilySize, idFamily,
		)}
	}
	return nil
}

func presentKinds(documents map[string]string) []string {
	kinds := make([]string, 0, len(documents))
	for _, kind := range models.DocumentKinds {
		if _, ok := documents[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
