// internal/pipeline/stage.go
package pipeline

import (
	"context"

	"support-pipeline/internal/models"
)

// Result is what a stage hands back to the orchestrator: the partial
// record update plus the material for exactly one audit entry.
type Result struct {
	Update      *models.StageUpdate
	Description string
	Input       map[string]interface{}
	Output      map[string]interface{}
}

// Stage is one pipeline step. Stages read the record and return a
// Result; they never mutate the record themselves.
type Stage interface {
	Name() string
	Execute(ctx context.Context, rec *models.ApplicationRecord) (*Result, error)
}
