// Package genai wraps the local text-generation service used to phrase
// decision explanations. Callers must treat failures as non-fatal and
// fall back to deterministic wording.
package genai

import (
	"context"

	stderrors "support-pipeline/internal/common/errors"
)

var (
	ErrGenerationFailed  = stderrors.NewGenerationFailedError("explanation", nil)
	ErrGenerationTimeout = stderrors.NewGenerationTimeoutError("explanation")
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
