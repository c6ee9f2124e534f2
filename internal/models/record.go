// internal/models/record.go
package models

import (
	"fmt"
	"time"
)

// Outcome is the terminal classification of an application.
type Outcome string

const (
	OutcomePending      Outcome = "PENDING"
	OutcomeRejected     Outcome = "REJECTED"
	OutcomeAccepted     Outcome = "ACCEPTED"
	OutcomeSoftDeclined Outcome = "SOFT_DECLINED"
	OutcomeError        Outcome = "ERROR"
)

// IsTerminal reports whether the outcome ends the pipeline.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeRejected || o == OutcomeAccepted || o == OutcomeSoftDeclined || o == OutcomeError
}

// Verdict is the validator's determination.
type Verdict string

const (
	VerdictPending   Verdict = "PENDING"
	VerdictValidated Verdict = "VALIDATED"
	VerdictRejected  Verdict = "REJECTED"
)

// Pathway is the support track recommended for accepted applicants.
type Pathway string

const (
	PathwayFinancialSupport   Pathway = "FINANCIAL_SUPPORT"
	PathwayEconomicEnablement Pathway = "ECONOMIC_ENABLEMENT"
)

// RecommendationNA is stored for every non-accepted terminal outcome.
const RecommendationNA = "N/A"

// FormFields holds the user-declared attributes captured at intake.
// The pipeline treats these as read-only.
type FormFields struct {
	Name             string `json:"name"`
	NationalID       string `json:"nationalId"`
	Email            string `json:"email,omitempty"`
	Address          string `json:"address"`
	Age              int    `json:"age"`
	MaritalStatus    string `json:"maritalStatus"`
	FamilySize       int    `json:"familySize"`
	Dependents       int    `json:"dependents"`
	EmploymentStatus string `json:"employmentStatus"`
}

// AuditEntry records one stage execution. Entries are append-only.
type AuditEntry struct {
	StageName   string                 `json:"stageName"`
	Description string                 `json:"description"`
	Input       map[string]interface{} `json:"input"`
	Output      map[string]interface{} `json:"output"`
	Timestamp   time.Time              `json:"timestamp"`
}

// ApplicationRecord is the single state object threaded through the
// pipeline. Stages never mutate it directly; they return a StageUpdate
// that the orchestrator merges in.
type ApplicationRecord struct {
	ApplicationID string               `json:"applicationId"`
	Form          FormFields           `json:"formFields"`
	Documents     map[string]string    `json:"extractedDocuments"`

	Verdict           Verdict  `json:"validationVerdict"`
	ValidationReasons []string `json:"validationReasons,omitempty"`

	Features    *FeatureVector `json:"featureVector,omitempty"`
	Label       *int           `json:"eligibilityLabel,omitempty"`
	Confidence  *float64       `json:"confidenceScore,omitempty"`
	// ClassifierUnavailable distinguishes a degraded (0, 0.0) fallback
	// from a genuine negative prediction.
	ClassifierUnavailable bool `json:"classifierUnavailable,omitempty"`

	Outcome        Outcome `json:"outcome"`
	FinalDecision  string  `json:"finalDecision,omitempty"`
	Explanation    string  `json:"explanation,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
	Pathway        Pathway `json:"pathway,omitempty"`
	FailedStage    string  `json:"failedStage,omitempty"`

	AuditTrail []AuditEntry `json:"auditTrail"`
	// Warnings surface degraded events (audit write failures, notifier
	// errors) to the caller without failing the pipeline.
	Warnings []string `json:"warnings,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewApplicationRecord creates a record in its intake state.
func NewApplicationRecord(id string, form FormFields, documents map[string]string) *ApplicationRecord {
	if documents == nil {
		documents = map[string]string{}
	}
	return &ApplicationRecord{
		ApplicationID: id,
		Form:          form,
		Documents:     documents,
		Verdict:       VerdictPending,
		Outcome:       OutcomePending,
		CreatedAt:     time.Now().UTC(),
	}
}

// AppendAudit appends one entry to the audit trail.
func (r *ApplicationRecord) AppendAudit(entry AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	r.AuditTrail = append(r.AuditTrail, entry)
}

// AddWarning records a degraded event visible to the caller.
func (r *ApplicationRecord) AddWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// StageUpdate is the partial result a stage hands back to the
// orchestrator. Nil fields are left untouched on merge; merges are
// additive and never delete previously set state.
type StageUpdate struct {
	Verdict           Verdict
	ValidationReasons []string

	Features              *FeatureVector
	Label                 *int
	Confidence            *float64
	ClassifierUnavailable bool

	Outcome        Outcome
	FinalDecision  string
	Explanation    string
	Recommendation string
	Pathway        Pathway
}

// Merge applies the update to the record. The orchestrator is the
// only caller; stages must not mutate the record themselves.
func (r *ApplicationRecord) Merge(u *StageUpdate) error {
	if u == nil {
		return nil
	}
	if u.Outcome != "" && u.Outcome != r.Outcome {
		if r.Outcome.IsTerminal() {
			return fmt.Errorf("outcome already terminal (%s), refusing transition to %s", r.Outcome, u.Outcome)
		}
		r.Outcome = u.Outcome
	}
	if u.Verdict != "" {
		r.Verdict = u.Verdict
	}
	if len(u.ValidationReasons) > 0 {
		r.ValidationReasons = append(r.ValidationReasons, u.ValidationReasons...)
	}
	if u.Features != nil {
		r.Features = u.Features
	}
	if u.Label != nil {
		r.Label = u.Label
	}
	if u.Confidence != nil {
		r.Confidence = u.Confidence
	}
	if u.ClassifierUnavailable {
		r.ClassifierUnavailable = true
	}
	if u.FinalDecision != "" {
		r.FinalDecision = u.FinalDecision
	}
	if u.Explanation != "" {
		r.Explanation = u.Explanation
	}
	if u.Recommendation != "" {
		r.Recommendation = u.Recommendation
	}
	if u.Pathway != "" {
		r.Pathway = u.Pathway
	}
	return nil
}
