// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	stderrors "support-pipeline/internal/common/errors"
	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/models"
)

var (
	ErrDatabaseInsertFailed = stderrors.NewDatabaseInsertFailedError(nil)
	ErrAuditWriteFailed     = stderrors.NewAuditWriteFailedError("", nil)
	ErrApplicationNotFound  = stderrors.NewApplicationNotFoundError("")
)

// DecisionSnapshot is the persisted view of a completed evaluation.
type DecisionSnapshot struct {
	ApplicationID  string         `json:"applicationId"`
	ApplicantName  string         `json:"applicantName"`
	Outcome        models.Outcome `json:"outcome"`
	FinalDecision  string         `json:"finalDecision"`
	Explanation    string         `json:"explanation"`
	Recommendation string         `json:"recommendation"`
	Pathway        models.Pathway `json:"pathway,omitempty"`
	DecidedAt      time.Time      `json:"decidedAt"`
}

// PostgresStore persists applications, decisions and the audit trail.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

// SaveApplication upserts the application row with its current state.
func (s *PostgresStore) SaveApplication(ctx context.Context, rec *models.ApplicationRecord) error {
	formJSON, err := json.Marshal(rec.Form)
	if err != nil {
		return fmt.Errorf("%w: marshal form: %v", ErrDatabaseInsertFailed, err)
	}

	var label sql.NullInt64
	if rec.Label != nil {
		label = sql.NullInt64{Int64: int64(*rec.Label), Valid: true}
	}
	var confidence sql.NullFloat64
	if rec.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *rec.Confidence, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, applicant_name, national_id, form_data, verdict,
			eligibility_label, confidence_score, classifier_unavailable,
			outcome, final_decision, explanation, recommendation, pathway,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			verdict = EXCLUDED.verdict,
			eligibility_label = EXCLUDED.eligibility_label,
			confidence_score = EXCLUDED.confidence_score,
			classifier_unavailable = EXCLUDED.classifier_unavailable,
			outcome = EXCLUDED.outcome,
			final_decision = EXCLUDED.final_decision,
			explanation = EXCLUDED.explanation,
			recommendation = EXCLUDED.recommendation,
			pathway = EXCLUDED.pathway,
			updated_at = EXCLUDED.updated_at`,
		rec.ApplicationID,
		rec.Form.Name,
		rec.Form.NationalID,
		formJSON,
		string(rec.Verdict),
		label,
		confidence,
		rec.ClassifierUnavailable,
		string(rec.Outcome),
		rec.FinalDecision,
		rec.Explanation,
		rec.Recommendation,
		string(rec.Pathway),
		rec.CreatedAt.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert application: %v", ErrDatabaseInsertFailed, err)
	}
	return nil
}

// AppendAuditEntry writes one stage execution to the audit log.
func (s *PostgresStore) AppendAuditEntry(ctx context.Context, applicationID string, entry models.AuditEntry) error {
	inputJSON, err := json.Marshal(entry.Input)
	if err != nil {
		return fmt.Errorf("%w: marshal input: %v", ErrAuditWriteFailed, err)
	}
	outputJSON, err := json.Marshal(entry.Output)
	if err != nil {
		return fmt.Errorf("%w: marshal output: %v", ErrAuditWriteFailed, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			application_id, stage_name, action_description,
			stage_input, stage_output, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		applicationID,
		entry.StageName,
		entry.Description,
		inputJSON,
		outputJSON,
		entry.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: insert audit entry: %v", ErrAuditWriteFailed, err)
	}
	return nil
}

// SaveDocumentExtraction records the extracted summary text for one
// uploaded document.
func (s *PostgresStore) SaveDocumentExtraction(ctx context.Context, applicationID, kind, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_extractions (
			application_id, document_kind, extracted_text, created_at
		) VALUES ($1, $2, $3, $4)
		ON CONFLICT (application_id, document_kind) DO UPDATE SET
			extracted_text = EXCLUDED.extracted_text,
			created_at = EXCLUDED.created_at`,
		applicationID,
		kind,
		text,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: insert extraction: %v", ErrDatabaseInsertFailed, err)
	}
	return nil
}

// LatestDecision loads the persisted decision for an application.
func (s *PostgresStore) LatestDecision(ctx context.Context, applicationID string) (*DecisionSnapshot, error) {
	var snapshot DecisionSnapshot
	var pathway sql.NullString
	var updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, applicant_name, outcome, final_decision,
		       explanation, recommendation, pathway, updated_at
		FROM applications
		WHERE id = $1`,
		applicationID,
	).Scan(
		&snapshot.ApplicationID,
		&snapshot.ApplicantName,
		&snapshot.Outcome,
		&snapshot.FinalDecision,
		&snapshot.Explanation,
		&snapshot.Recommendation,
		&pathway,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("query decision: %w", err)
	}

	if pathway.Valid {
		snapshot.Pathway = models.Pathway(pathway.String)
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		snapshot.DecidedAt = ts
	}
	return &snapshot, nil
}

// AuditTrail loads the audit entries for an application in execution order.
func (s *PostgresStore) AuditTrail(ctx context.Context, applicationID string) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage_name, action_description, stage_input, stage_output, created_at
		FROM audit_logs
		WHERE application_id = $1
		ORDER BY id ASC`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		var inputJSON, outputJSON []byte
		var createdAt string

		if err := rows.Scan(&entry.StageName, &entry.Description, &inputJSON, &outputJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(inputJSON) > 0 {
			if err := json.Unmarshal(inputJSON, &entry.Input); err != nil {
				s.logger.Warn("malformed audit input", map[string]interface{}{
					"applicationId": applicationID,
					"stage":         entry.StageName,
				})
			}
		}
		if len(outputJSON) > 0 {
			if err := json.Unmarshal(outputJSON, &entry.Output); err != nil {
				s.logger.Warn("malformed audit output", map[string]interface{}{
					"applicationId": applicationID,
					"stage":         entry.StageName,
				})
			}
		}
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			entry.Timestamp = ts
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
