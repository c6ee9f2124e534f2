// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	stderrors "support-pipeline/internal/common/errors"
	"support-pipeline/internal/common/validation"
	"support-pipeline/internal/models"
	"support-pipeline/internal/store"
)

type submitRequest struct {
	Name             string            `json:"name"`
	NationalID       string            `json:"national_id"`
	Email            string            `json:"email"`
	Address          string            `json:"address"`
	Age              int               `json:"age"`
	MaritalStatus    string            `json:"marital_status"`
	FamilySize       int               `json:"family_size"`
	Dependents       int               `json:"dependents"`
	EmploymentStatus string            `json:"employment_status"`
	Phone            string            `json:"phone"`
	Documents        map[string]string `json:"documents"`
}

type attachDocumentRequest struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type evaluateResponse struct {
	ApplicationID   string   `json:"applicationId"`
	Outcome         string   `json:"outcome"`
	FinalDecision   string   `json:"finalDecision"`
	Explanation     string   `json:"explanation,omitempty"`
	Recommendation  string   `json:"recommendation,omitempty"`
	ConfidenceScore *float64 `json:"confidenceScore,omitempty"`
	FailedStage     string   `json:"failedStage,omitempty"`
	Reasons         []string `json:"reasons,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "PARSE_ERROR", "request body is not valid JSON")
		return
	}

	payload := map[string]interface{}{
		"name":              req.Name,
		"national_id":       req.NationalID,
		"email":             req.Email,
		"address":           req.Address,
		"age":               req.Age,
		"marital_status":    req.MaritalStatus,
		"family_size":       req.FamilySize,
		"dependents":        req.Dependents,
		"employment_status": req.EmploymentStatus,
	}
	violations, err := validation.ValidateIntake(payload)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "VALIDATION_ERROR", err.Error())
		return
	}
	if len(violations) > 0 {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      string(stderrors.ErrCodeIntakeValidationFailed),
			"violations": violations,
		})
		return
	}

	for kind := range req.Documents {
		if !models.KnownDocumentKind(kind) {
			s.writeError(w, http.StatusBadRequest, string(stderrors.ErrCodeUnknownDocumentKind), kind)
			return
		}
	}

	rec := models.NewApplicationRecord(uuid.New().String(), models.FormFields{
		Name:             req.Name,
		NationalID:       req.NationalID,
		Email:            req.Email,
		Address:          req.Address,
		Age:              req.Age,
		MaritalStatus:    req.MaritalStatus,
		FamilySize:       req.FamilySize,
		Dependents:       req.Dependents,
		EmploymentStatus: req.EmploymentStatus,
	}, req.Documents)
	s.putRecord(rec)

	if s.store != nil {
		if err := s.store.SaveApplication(r.Context(), rec); err != nil {
			rec.AddWarning("application snapshot was not persisted: %v", err)
			s.logger.Warn("intake save failed", map[string]interface{}{
				"applicationId": rec.ApplicationID,
				"error":         err.Error(),
			})
		}
		for kind, text := range rec.Documents {
			if err := s.store.SaveDocumentExtraction(r.Context(), rec.ApplicationID, kind, text); err != nil {
				rec.AddWarning("document %s was not persisted: %v", kind, err)
			}
		}
	}

	s.logger.Info("application submitted", map[string]interface{}{
		"applicationId": rec.ApplicationID,
		"documents":     len(rec.Documents),
	})
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"applicationId": rec.ApplicationID,
		"outcome":       string(rec.Outcome),
		"createdAt":     rec.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, string(stderrors.ErrCodeApplicationNotFound), r.PathValue("id"))
		return
	}
	if rec.Outcome.IsTerminal() {
		s.writeError(w, http.StatusConflict, "APPLICATION_ALREADY_DECIDED", "record is immutable after a terminal outcome")
		return
	}
	if s.evaluationInProgress(rec.ApplicationID) {
		s.writeError(w, http.StatusConflict, "EVALUATION_IN_PROGRESS", "documents cannot change while an evaluation runs")
		return
	}

	var req attachDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "PARSE_ERROR", "request body is not valid JSON")
		return
	}
	if !models.KnownDocumentKind(req.Kind) {
		s.writeError(w, http.StatusBadRequest, string(stderrors.ErrCodeUnknownDocumentKind), req.Kind)
		return
	}

	rec.Documents[req.Kind] = req.Text
	if s.store != nil {
		if err := s.store.SaveDocumentExtraction(r.Context(), rec.ApplicationID, req.Kind, req.Text); err != nil {
			rec.AddWarning("document %s was not persisted: %v", req.Kind, err)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"applicationId": rec.ApplicationID,
		"documents":     len(rec.Documents),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, claim := s.claimEvaluation(id)
	switch claim {
	case claimNotFound:
		s.writeError(w, http.StatusNotFound, string(stderrors.ErrCodeApplicationNotFound), id)
		return
	case claimTerminal:
		s.writeError(w, http.StatusConflict, "APPLICATION_ALREADY_DECIDED", "record already carries a terminal outcome")
		return
	case claimInProgress:
		s.writeError(w, http.StatusConflict, "EVALUATION_IN_PROGRESS", "an evaluation is already running for this application")
		return
	}
	defer s.releaseEvaluation(id)

	var phone string
	if err := json.NewDecoder(r.Body).Decode(&struct {
		Phone *string `json:"phone"`
	}{Phone: &phone}); err != nil {
		// An empty or absent body is fine; phone is optional.
		phone = ""
	}

	started := time.Now()
	out, runErr := s.runner.Run(r.Context(), rec)
	if s.observer != nil {
		s.observer.RecordRun(r.Context(), string(out.Outcome))
		s.observer.RecordRunDuration(r.Context(), time.Since(started), string(out.Outcome))
	}

	snapshot := snapshotOf(out)
	if s.cache != nil {
		if err := s.cache.Put(r.Context(), snapshot); err != nil {
			out.AddWarning("decision cache write failed: %v", err)
		}
	}
	if s.index != nil {
		if err := s.index.IndexDecision(r.Context(), snapshot); err != nil {
			out.AddWarning("decision index write failed: %v", err)
		}
	}
	if s.notifier != nil {
		for _, problem := range s.notifier.NotifyDecision(r.Context(), out, phone) {
			out.AddWarning("%s", problem)
		}
	}

	resp := evaluateResponse{
		ApplicationID:   out.ApplicationID,
		Outcome:         string(out.Outcome),
		FinalDecision:   out.FinalDecision,
		Explanation:     out.Explanation,
		Recommendation:  out.Recommendation,
		ConfidenceScore: out.Confidence,
		Reasons:         out.ValidationReasons,
		Warnings:        out.Warnings,
	}

	status := http.StatusOK
	if out.Outcome == models.OutcomeError {
		resp.FailedStage = out.FailedStage
		status = http.StatusInternalServerError
		if runErr != nil {
			s.logger.Error("evaluation failed", map[string]interface{}{
				"applicationId": out.ApplicationID,
				"stage":         out.FailedStage,
				"error":         runErr.Error(),
			})
		}
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if s.cache != nil {
		if snapshot, err := s.cache.Get(r.Context(), id); err == nil && snapshot != nil {
			s.writeJSON(w, http.StatusOK, snapshot)
			return
		}
	}

	snapshot, err := s.store.LatestDecision(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrApplicationNotFound) {
			s.writeError(w, http.StatusNotFound, string(stderrors.ErrCodeApplicationNotFound), id)
			return
		}
		s.writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	if s.cache != nil {
		if err := s.cache.Put(r.Context(), snapshot); err != nil {
			s.logger.Warn("decision cache backfill failed", map[string]interface{}{
				"applicationId": id,
				"error":         err.Error(),
			})
		}
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	entries, err := s.store.AuditTrail(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if len(entries) == 0 {
		// Fall back to the in-memory trail when the sink was degraded.
		if rec, ok := s.record(id); ok {
			entries = rec.AuditTrail
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"applicationId": id,
		"auditTrail":    entries,
	})
}

func (s *Server) handleSearchDecisions(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.writeError(w, http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "decision search index is not configured")
		return
	}

	q := r.URL.Query()
	size := 0
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "PARSE_ERROR", "size must be an integer")
			return
		}
		size = n
	}

	results, err := s.index.SearchDecisions(r.Context(), q.Get("outcome"), q.Get("name"), size)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, string(stderrors.ErrCodeDecisionIndexFailed), err.Error())
		return
	}
	if results == nil {
		results = []store.DecisionSnapshot{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":     len(results),
		"decisions": results,
	})
}

func (s *Server) handleStageCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, detail string) {
	s.writeJSON(w, status, map[string]string{
		"error":  code,
		"detail": detail,
	})
}
