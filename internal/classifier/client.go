// internal/classifier/client.go
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"support-pipeline/internal/common/config"
	stderrors "support-pipeline/internal/common/errors"
	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/models"
)

// Client talks to the scoring service over HTTP. Retries transient
// failures with exponential backoff; context deadline wins.
type Client struct {
	config config.ClassifierConfig
	client *http.Client
	logger logger.Logger
}

func NewClient(cfg config.ClassifierConfig, log logger.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = stderrors.GetRetryCount(stderrors.ErrCodeClassifierUnavailable)
	}
	return &Client{
		config: cfg,
		// No client timeout, the per-call context carries the deadline.
		client: &http.Client{},
		logger: log.WithFields(map[string]interface{}{"component": "classifier"}),
	}
}

func (c *Client) Predict(ctx context.Context, features *models.FeatureVector) (*Prediction, error) {
	requestBody := map[string]interface{}{
		"features": features.ToOrdered(),
	}
	body, _ := json.Marshal(requestBody)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/classifier/predict", bytes.NewBuffer(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, lastErr = c.client.Do(req)
		if lastErr == nil {
			switch resp.StatusCode {
			case http.StatusOK:
				return c.decode(resp)
			case http.StatusServiceUnavailable:
				// Model not loaded on the scoring side. Retrying will
				// not help within this call.
				resp.Body.Close()
				return nil, ErrModelNotLoaded
			default:
				resp.Body.Close()
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
				resp = nil
			}
		}

		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		return nil, ErrTimeout
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) decode(resp *http.Response) (*Prediction, error) {
	defer resp.Body.Close()

	var prediction Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrUnavailable, err)
	}

	if prediction.Confidence < 0 || prediction.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %f out of range", ErrUnavailable, prediction.Confidence)
	}

	return &prediction, nil
}
