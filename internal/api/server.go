// internal/api/server.go

// Package api exposes the intake and evaluation HTTP surface. The
// pipeline itself is transport-agnostic; this layer only parses
// requests, holds in-flight records, and reports results.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/models"
	"support-pipeline/internal/store"
	"support-pipeline/pkg/registry"
)

// Runner executes the evaluation pipeline for one record.
type Runner interface {
	Run(ctx context.Context, rec *models.ApplicationRecord) (*models.ApplicationRecord, error)
}

// Store is the persistence surface the API reads and writes.
type Store interface {
	SaveApplication(ctx context.Context, rec *models.ApplicationRecord) error
	SaveDocumentExtraction(ctx context.Context, applicationID, kind, text string) error
	LatestDecision(ctx context.Context, applicationID string) (*store.DecisionSnapshot, error)
	AuditTrail(ctx context.Context, applicationID string) ([]models.AuditEntry, error)
}

// Cache is the optional decision snapshot cache.
type Cache interface {
	Put(ctx context.Context, snapshot *store.DecisionSnapshot) error
	Get(ctx context.Context, applicationID string) (*store.DecisionSnapshot, error)
}

// Indexer mirrors decisions into the search index and serves the
// reporting queries built on it.
type Indexer interface {
	IndexDecision(ctx context.Context, snapshot *store.DecisionSnapshot) error
	SearchDecisions(ctx context.Context, outcome, name string, size int) ([]store.DecisionSnapshot, error)
}

// Observer receives per-run telemetry. Optional.
type Observer interface {
	RecordRun(ctx context.Context, outcome string)
	RecordRunDuration(ctx context.Context, duration time.Duration, outcome string)
}

// Notifier delivers terminal outcomes to the applicant.
type Notifier interface {
	NotifyDecision(ctx context.Context, rec *models.ApplicationRecord, phone string) []string
}

// Server holds the in-flight application records and the collaborators
// the handlers call into. Cache, index and notifier may be nil.
type Server struct {
	runner   Runner
	store    Store
	cache    Cache
	index    Indexer
	notifier Notifier
	observer Observer
	catalog  *registry.StageRegistry
	logger   logger.Logger

	mu         sync.RWMutex
	records    map[string]*models.ApplicationRecord
	evaluating map[string]bool
}

func NewServer(runner Runner, st Store, cache Cache, index Indexer, notifier Notifier, log logger.Logger) *Server {
	return &Server{
		runner:     runner,
		store:      st,
		cache:      cache,
		index:      index,
		notifier:   notifier,
		catalog:    registry.Default(),
		logger:     log.WithFields(map[string]interface{}{"component": "api"}),
		records:    make(map[string]*models.ApplicationRecord),
		evaluating: make(map[string]bool),
	}
}

// WithObserver attaches run telemetry.
func (s *Server) WithObserver(obs Observer) *Server {
	s.observer = obs
	return s
}

// WithStageCatalog overrides the built-in stage catalog, typically with
// one loaded from the configured registry file.
func (s *Server) WithStageCatalog(catalog *registry.StageRegistry) *Server {
	if catalog != nil {
		s.catalog = catalog
	}
	return s
}

// Routes returns the HTTP handler for the application API.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/applications", s.handleSubmit)
	mux.HandleFunc("POST /api/v1/applications/{id}/documents", s.handleAttachDocument)
	mux.HandleFunc("POST /api/v1/applications/{id}/evaluate", s.handleEvaluate)
	mux.HandleFunc("GET /api/v1/applications/{id}/decision", s.handleDecision)
	mux.HandleFunc("GET /api/v1/applications/{id}/audit", s.handleAuditTrail)
	mux.HandleFunc("GET /api/v1/decisions", s.handleSearchDecisions)
	mux.HandleFunc("GET /api/v1/stages", s.handleStageCatalog)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	return mux
}

func (s *Server) record(id string) (*models.ApplicationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

func (s *Server) putRecord(rec *models.ApplicationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ApplicationID] = rec
}

// claimEvaluation reserves a record for exactly one evaluation run.
// The existence, terminal-outcome and in-progress checks happen under
// one lock so two concurrent requests cannot both win the claim.
func (s *Server) claimEvaluation(id string) (*models.ApplicationRecord, claimResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, claimNotFound
	}
	if rec.Outcome.IsTerminal() {
		return nil, claimTerminal
	}
	if s.evaluating[id] {
		return nil, claimInProgress
	}
	s.evaluating[id] = true
	return rec, claimOK
}

func (s *Server) releaseEvaluation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.evaluating, id)
}

func (s *Server) evaluationInProgress(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evaluating[id]
}

type claimResult int

const (
	claimOK claimResult = iota
	claimNotFound
	claimTerminal
	claimInProgress
)

func snapshotOf(rec *models.ApplicationRecord) *store.DecisionSnapshot {
	return &store.DecisionSnapshot{
		ApplicationID:  rec.ApplicationID,
		ApplicantName:  rec.Form.Name,
		Outcome:        rec.Outcome,
		FinalDecision:  rec.FinalDecision,
		Explanation:    rec.Explanation,
		Recommendation: rec.Recommendation,
		Pathway:        rec.Pathway,
		DecidedAt:      time.Now().UTC(),
	}
}
