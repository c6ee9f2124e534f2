// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// intakeSchema is the JSON Schema applied to application submissions
// before a record enters the pipeline.
var intakeSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"name", "national_id"},
	"properties": map[string]interface{}{
		"name":        map[string]interface{}{"type": "string", "minLength": 1},
		"national_id": map[string]interface{}{"type": "string", "minLength": 1},
		"email":       map[string]interface{}{"type": "string"},
		"address":     map[string]interface{}{"type": "string"},
		"age": map[string]interface{}{
			"type":    "integer",
			"minimum": 0,
			"maximum": 150,
		},
		"marital_status": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"Single", "Married", "Divorced", "Widowed", ""},
		},
		"family_size":       map[string]interface{}{"type": "integer", "minimum": 0},
		"dependents":        map[string]interface{}{"type": "integer", "minimum": 0},
		"employment_status": map[string]interface{}{"type": "string"},
	},
}

var compiledIntakeSchema *gojsonschema.Schema

func init() {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(intakeSchema))
	if err != nil {
		panic(fmt.Sprintf("intake schema does not compile: %v", err))
	}
	compiledIntakeSchema = schema
}

// ValidateIntake checks a submission payload against the intake schema.
// Returns the list of violation descriptions, empty when the payload is valid.
func ValidateIntake(payload map[string]interface{}) ([]string, error) {
	result, err := compiledIntakeSchema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("intake validation error: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		violations[i] = desc.String()
	}
	return violations, nil
}
