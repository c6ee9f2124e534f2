// internal/features/normalizer_test.go
package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"support-pipeline/internal/models"
)

func testForm() models.FormFields {
	return models.FormFields{
		Name:             "Lauren Trujillo",
		Age:              35,
		MaritalStatus:    "Married",
		FamilySize:       5,
		Dependents:       4,
		EmploymentStatus: "Unemployed",
	}
}

func TestNormalize_FullDocuments(t *testing.T) {
	docs := map[string]string{
		models.DocBankStatement:  "Salary: 4,000.00, Balance: 9,800.00, Identity: Pass",
		models.DocCreditReport:   "Score: 610, Income: 4,000.00, Savings: 15,000.00, Identity: Pass",
		models.DocMedicalReport:  "Diagnosis: Chronic Condition, Severity: 6/10, Identity: Pass",
		models.DocAssetStatement: "Total Value: 120,000.00",
	}

	v := Normalize(testForm(), docs)

	assert.Equal(t, 35, v.Age)
	assert.Equal(t, "Married", v.MaritalStatus)
	assert.Equal(t, 5, v.FamilySize)
	assert.Equal(t, 4, v.Dependents)
	assert.Equal(t, 4000.0, v.MonthlyIncome)
	assert.Equal(t, 15000.0, v.TotalSavings)
	assert.Equal(t, 120000.0, v.PropertyValue)
	assert.True(t, v.HasDisability)
	assert.Equal(t, 6, v.MedicalSeverity)
	assert.Equal(t, "Unemployed", v.EmploymentStatus)
}

func TestNormalize_MissingDocumentsDefaultToZero(t *testing.T) {
	v := Normalize(testForm(), nil)

	assert.Equal(t, 0.0, v.MonthlyIncome)
	assert.Equal(t, 0.0, v.TotalSavings)
	assert.Equal(t, 0.0, v.PropertyValue)
	assert.False(t, v.HasDisability)
	assert.Equal(t, 0, v.MedicalSeverity)
	// Form-derived fields survive missing documents.
	assert.Equal(t, 35, v.Age)
}

func TestNormalize_DisabilityFlag(t *testing.T) {
	tests := []struct {
		name    string
		medical string
		want    bool
	}{
		{"diagnosis present", "Diagnosis: Chronic Condition, Severity: 4/10", true},
		{"fit marker overrides diagnosis", "Diagnosis: Minor Strain, Notes: fit for work, Severity: 1/10", false},
		{"no condition marker", "Diagnosis: None, Notes: no condition found", false},
		{"diagnosis N/A", "Diagnosis: N/A, Severity: 0/10", false},
		{"no medical report", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := map[string]string{}
			if tt.medical != "" {
				docs[models.DocMedicalReport] = tt.medical
			}
			v := Normalize(testForm(), docs)
			assert.Equal(t, tt.want, v.HasDisability)
		})
	}
}

func TestNormalize_MalformedNumbersDefaultToZero(t *testing.T) {
	docs := map[string]string{
		models.DocBankStatement: "Salary: pending review, Identity: Pass",
		models.DocCreditReport:  "Savings: unknown",
	}
	v := Normalize(testForm(), docs)
	assert.Equal(t, 0.0, v.MonthlyIncome)
	assert.Equal(t, 0.0, v.TotalSavings)
}
