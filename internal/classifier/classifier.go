// Package classifier calls the ML scoring service that assigns an
// eligibility label and confidence to a normalized feature vector.
package classifier

import (
	"context"

	stderrors "support-pipeline/internal/common/errors"
	"support-pipeline/internal/models"
)

// Sentinels shared across the package. Wrapped errors keep their code
// for metrics labels and audit entries.
var (
	ErrModelNotLoaded = stderrors.NewModelNotLoadedError()
	ErrUnavailable    = stderrors.NewClassifierUnavailableError(nil)
	ErrTimeout        = stderrors.NewClassifierTimeoutError()
)

// Prediction is the classifier verdict for one application.
type Prediction struct {
	Label      int     `json:"label"`
	Confidence float64 `json:"confidence"`
}

type Classifier interface {
	Predict(ctx context.Context, features *models.FeatureVector) (*Prediction, error)
}
