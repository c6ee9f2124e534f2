// internal/features/normalizer.go

// Package features converts form fields and extracted document
// summaries into the fixed feature vector the classifier consumes.
package features

import (
	"support-pipeline/internal/extract"
	"support-pipeline/internal/models"
)

// Markers that override a diagnosis, meaning the applicant has no
// qualifying condition. A disability is flagged only when a diagnosis
// marker is present and none of these appear.
var fitMarkers = []string{"fit for work", "no condition", "no diagnosis"}

// Normalize builds the 10-field feature vector. Missing or malformed
// document fields default to zero values; it never fails.
func Normalize(form models.FormFields, documents map[string]string) *models.FeatureVector {
	docs := extract.Documents(documents)

	bank := docs.Doc(models.DocBankStatement)
	credit := docs.Doc(models.DocCreditReport)
	medical := docs.Doc(models.DocMedicalReport)
	assets := docs.Doc(models.DocAssetStatement)

	return &models.FeatureVector{
		Age:              form.Age,
		MaritalStatus:    form.MaritalStatus,
		FamilySize:       form.FamilySize,
		Dependents:       form.Dependents,
		MonthlyIncome:    bank.Number("Salary"),
		TotalSavings:     credit.Number("Savings"),
		PropertyValue:    assets.Number("Value"),
		HasDisability:    hasDisability(medical),
		MedicalSeverity:  medical.Severity(),
		EmploymentStatus: form.EmploymentStatus,
	}
}

func hasDisability(medical extract.Document) bool {
	if _, ok := medical.Get("Diagnosis"); !ok {
		return false
	}
	diag, _ := medical.Get("Diagnosis")
	if diag == "" || diag == "N/A" || diag == "None" {
		return false
	}
	for _, marker := range fitMarkers {
		if medical.Has(marker) {
			return false
		}
	}
	return true
}
