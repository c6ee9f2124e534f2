// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"os"
)

// LoadRegistry reads a stage catalog from a JSON file, for deployments
// that override the built-in one.
func LoadRegistry(path string) (*StageRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg StageRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// Default returns the catalog matching the compiled-in pipeline.
func Default() *StageRegistry {
	return &StageRegistry{
		Version:    "1.0.0",
		PipelineID: "social-support-decision",
		Stages: []Stage{
			{
				Name:        "validator",
				DisplayName: "Consistency Validator",
				Description: "Cross-checks form fields against extracted document labels: income figures, declared family size, and identity checks.",
				Order:       1,
				ErrorCodes:  []string{"INTAKE_VALIDATION_FAILED"},
			},
			{
				Name:        "inferencer",
				DisplayName: "Eligibility Inferencer",
				Description: "Builds the applicant feature vector and requests an eligibility prediction from the classifier service.",
				Order:       2,
				RunsWhen:    "verdict is VALIDATED",
				ErrorCodes:  []string{"MODEL_NOT_LOADED", "CLASSIFIER_UNAVAILABLE", "CLASSIFIER_TIMEOUT"},
				Degraded:    "On classifier failure the stage records a non-eligible prediction with zero confidence and flags the record as degraded.",
			},
			{
				Name:        "decider",
				DisplayName: "Decision Writer",
				Description: "Maps the predicted label to an accept or soft-decline outcome and generates the applicant-facing explanation.",
				Order:       3,
				Degraded:    "On generation failure a deterministic template explanation is used instead.",
			},
			{
				Name:        "advisor",
				DisplayName: "Pathway Advisor",
				Description: "Selects a financial-support or economic-enablement pathway and generates the enrollment recommendation.",
				Order:       4,
				RunsWhen:    "outcome is ACCEPTED",
				Degraded:    "On generation failure a deterministic pathway recommendation is used instead.",
			},
		},
	}
}
