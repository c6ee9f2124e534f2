// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-pipeline/internal/api"
	"support-pipeline/internal/classifier"
	"support-pipeline/internal/common/config"
	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/genai"
	"support-pipeline/internal/models"
	"support-pipeline/internal/pipeline"
	"support-pipeline/internal/stages/advisor"
	"support-pipeline/internal/stages/decider"
	"support-pipeline/internal/stages/inferencer"
	"support-pipeline/internal/stages/validator"
	"support-pipeline/internal/store"
)

// memoryStore backs both the pipeline audit writes and the API reads,
// standing in for Postgres.
type memoryStore struct {
	mu        sync.Mutex
	decisions map[string]*store.DecisionSnapshot
	audits    map[string][]models.AuditEntry
	documents map[string]map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		decisions: map[string]*store.DecisionSnapshot{},
		audits:    map[string][]models.AuditEntry{},
		documents: map[string]map[string]string{},
	}
}

func (m *memoryStore) SaveApplication(_ context.Context, rec *models.ApplicationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Outcome.IsTerminal() {
		m.decisions[rec.ApplicationID] = &store.DecisionSnapshot{
			ApplicationID:  rec.ApplicationID,
			ApplicantName:  rec.Form.Name,
			Outcome:        rec.Outcome,
			FinalDecision:  rec.FinalDecision,
			Explanation:    rec.Explanation,
			Recommendation: rec.Recommendation,
			Pathway:        rec.Pathway,
		}
	}
	return nil
}

func (m *memoryStore) AppendAuditEntry(_ context.Context, applicationID string, entry models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits[applicationID] = append(m.audits[applicationID], entry)
	return nil
}

func (m *memoryStore) SaveDocumentExtraction(_ context.Context, applicationID, kind, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.documents[applicationID] == nil {
		m.documents[applicationID] = map[string]string{}
	}
	m.documents[applicationID][kind] = text
	return nil
}

func (m *memoryStore) LatestDecision(_ context.Context, applicationID string) (*store.DecisionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot, ok := m.decisions[applicationID]
	if !ok {
		return nil, store.ErrApplicationNotFound
	}
	return snapshot, nil
}

func (m *memoryStore) AuditTrail(_ context.Context, applicationID string) ([]models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audits[applicationID], nil
}

// startModelServices spins up in-process classifier and generation
// endpoints speaking the real wire formats.
func startModelServices(t *testing.T, label int, confidence float64) (classifierURL, genaiURL string) {
	clf := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/classifier/predict", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"label":      label,
			"confidence": confidence,
		})
	}))
	t.Cleanup(clf.Close)

	gen := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": "Based on the reviewed income and household profile, support is appropriate.",
			"done":     true,
		})
	}))
	t.Cleanup(gen.Close)

	return clf.URL, gen.URL
}

func startApplicationServer(t *testing.T, classifierURL, genaiURL string) (*httptest.Server, *memoryStore) {
	log := logger.NewTestLogger(t)
	st := newMemoryStore()

	clf := classifier.NewClient(config.ClassifierConfig{
		BaseURL:    classifierURL,
		Timeout:    5000,
		MaxRetries: 2,
	}, log)
	gen := genai.NewClient(config.GenAIConfig{
		BaseURL:     genaiURL,
		Model:       "llama3.2:1b",
		Timeout:     5000,
		MaxRetries:  1,
		MaxTokens:   256,
		Temperature: 0.2,
	}, log)

	orchestrator := pipeline.New(
		validator.NewHandler(validator.DefaultConfig(), log),
		inferencer.NewHandler(inferencer.DefaultConfig(), clf, log),
		decider.NewHandler(decider.DefaultConfig(), gen, log),
		advisor.NewHandler(advisor.DefaultConfig(), gen, log),
		st,
		log,
	)

	srv := api.NewServer(orchestrator, st, nil, nil, nil, log)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, st
}

func postJSON(t *testing.T, url string, body interface{}) map[string]interface{} {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]interface{} {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func submission() map[string]interface{} {
	return map[string]interface{}{
		"name":              "Sara Ahmed",
		"national_id":       "784-1990-1234567-1",
		"email":             "sara@example.com",
		"age":               34,
		"marital_status":    "Married",
		"family_size":       5,
		"dependents":        4,
		"employment_status": "Employed",
		"documents": map[string]string{
			models.DocIdentity:      "Name: Sara Ahmed, Family: 5, Identity: Pass",
			models.DocBankStatement: "Salary: 4,000.00, Balance: 12,000.00, Identity: Pass",
		},
	}
}

func TestFullEvaluationFlow(t *testing.T) {
	clfURL, genURL := startModelServices(t, 1, 0.91)
	ts, st := startApplicationServer(t, clfURL, genURL)

	// 1. Submit the intake form with the first two documents.
	created := postJSON(t, ts.URL+"/api/v1/applications", submission())
	id, ok := created["applicationId"].(string)
	require.True(t, ok, "submit response: %v", created)

	// 2. Attach the credit report before evaluating.
	attached := postJSON(t, ts.URL+"/api/v1/applications/"+id+"/documents", map[string]string{
		"kind": models.DocCreditReport,
		"text": "Income: 4,000.00, Debt: 500.00, Identity: Pass",
	})
	assert.Equal(t, float64(3), attached["documents"])

	// 3. Run the pipeline.
	decided := postJSON(t, ts.URL+"/api/v1/applications/"+id+"/evaluate", map[string]string{})
	assert.Equal(t, "ACCEPTED", decided["outcome"])
	assert.Contains(t, decided["finalDecision"], "Congratulations Sara Ahmed")
	assert.NotEmpty(t, decided["recommendation"])

	// 4. The decision is readable afterwards.
	decision := getJSON(t, ts.URL+"/api/v1/applications/"+id+"/decision", http.StatusOK)
	assert.Equal(t, "ACCEPTED", decision["outcome"])

	// 5. The audit trail covers every executed stage in order.
	audit := getJSON(t, ts.URL+"/api/v1/applications/"+id+"/audit", http.StatusOK)
	trail := audit["auditTrail"].([]interface{})
	require.Len(t, trail, 4)
	var stages []string
	for _, raw := range trail {
		stages = append(stages, raw.(map[string]interface{})["stageName"].(string))
	}
	assert.Equal(t, []string{"validator", "inferencer", "decider", "advisor"}, stages)

	// Documents were persisted at intake plus attach.
	assert.Len(t, st.documents[id], 3)
}

func TestFullFlowValidatorRejects(t *testing.T) {
	clfURL, genURL := startModelServices(t, 1, 0.91)
	ts, _ := startApplicationServer(t, clfURL, genURL)

	body := submission()
	body["documents"] = map[string]string{
		models.DocIdentity:      "Family: 5, Identity: Pass",
		models.DocBankStatement: "Salary: 9,000.00, Identity: Pass",
	}
	created := postJSON(t, ts.URL+"/api/v1/applications", body)
	id := created["applicationId"].(string)

	postJSON(t, ts.URL+"/api/v1/applications/"+id+"/documents", map[string]string{
		"kind": models.DocCreditReport,
		"text": "Income: 4,000.00, Identity: Pass",
	})

	decided := postJSON(t, ts.URL+"/api/v1/applications/"+id+"/evaluate", map[string]string{})
	assert.Equal(t, "REJECTED", decided["outcome"])
	assert.Contains(t, decided["finalDecision"], "rejected")

	// Rejection is terminal before inference, so only the validator
	// appears in the trail.
	audit := getJSON(t, ts.URL+"/api/v1/applications/"+id+"/audit", http.StatusOK)
	trail := audit["auditTrail"].([]interface{})
	require.Len(t, trail, 1)
	assert.Equal(t, "validator", trail[0].(map[string]interface{})["stageName"])
}

func TestFullFlowClassifierDownSoftDeclines(t *testing.T) {
	// Classifier that is never ready.
	clf := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(clf.Close)
	_, genURL := startModelServices(t, 1, 0.91)

	ts, _ := startApplicationServer(t, clf.URL, genURL)

	created := postJSON(t, ts.URL+"/api/v1/applications", submission())
	id := created["applicationId"].(string)

	decided := postJSON(t, ts.URL+"/api/v1/applications/"+id+"/evaluate", map[string]string{})
	assert.Equal(t, "SOFT_DECLINED", decided["outcome"])
	assert.Contains(t, decided["finalDecision"], "soft declined")
	assert.Equal(t, models.RecommendationNA, decided["recommendation"])
}
