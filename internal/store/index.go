// internal/store/index.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	stderrors "support-pipeline/internal/common/errors"
	"support-pipeline/internal/common/logger"
)

var ErrDecisionIndexFailed = stderrors.NewDecisionIndexFailedError(nil)

// DecisionIndex mirrors decision snapshots into Elasticsearch for
// reporting and search. Indexing is best-effort; callers downgrade
// failures to warnings.
type DecisionIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewDecisionIndex(client *elasticsearch.Client, index string, log logger.Logger) *DecisionIndex {
	return &DecisionIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "decision-index"}),
	}
}

// IndexDecision writes one snapshot, keyed by application ID so
// re-evaluations overwrite the previous document.
func (d *DecisionIndex) IndexDecision(ctx context.Context, snapshot *DecisionSnapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrDecisionIndexFailed, err)
	}

	req := esapi.IndexRequest{
		Index:      d.index,
		DocumentID: snapshot.ApplicationID,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, d.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecisionIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrDecisionIndexFailed, res.Status())
	}
	return nil
}

// SearchDecisions returns snapshots matching an outcome and optional
// applicant name text.
func (d *DecisionIndex) SearchDecisions(ctx context.Context, outcome, name string, size int) ([]DecisionSnapshot, error) {
	if size <= 0 || size > 100 {
		size = 20
	}

	must := []map[string]interface{}{}
	if outcome != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"outcome": outcome},
		})
	}
	if name != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"applicantName": name},
		})
	}

	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"sort": []map[string]interface{}{
			{"decidedAt": map[string]interface{}{"order": "desc"}},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", ErrDecisionIndexFailed, err)
	}

	res, err := d.client.Search(
		d.client.Search.WithContext(ctx),
		d.client.Search.WithIndex(d.index),
		d.client.Search.WithBody(strings.NewReader(buf.String())),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecisionIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrDecisionIndexFailed, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source DecisionSnapshot `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrDecisionIndexFailed, err)
	}

	snapshots := make([]DecisionSnapshot, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		snapshots = append(snapshots, hit.Source)
	}
	return snapshots, nil
}
