// internal/models/features.go
package models

// DocumentKind values match the labels produced by the extraction
// service. They key the ApplicationRecord.Documents map.
const (
	DocIdentity       = "Identity Document"
	DocBankStatement  = "Bank Statement"
	DocCreditReport   = "Credit Report"
	DocMedicalReport  = "Medical Report"
	DocResume         = "Resume"
	DocAssetStatement = "Asset Statement"
)

// DocumentKinds lists every accepted document kind.
var DocumentKinds = []string{
	DocIdentity,
	DocBankStatement,
	DocCreditReport,
	DocMedicalReport,
	DocResume,
	DocAssetStatement,
}

// KnownDocumentKind reports whether kind is part of the fixed enumeration.
func KnownDocumentKind(kind string) bool {
	for _, k := range DocumentKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// FeatureVector is the fixed-shape numeric representation fed to the
// eligibility classifier. Field order matters to the model server and
// must match ToOrdered.
type FeatureVector struct {
	Age              int     `json:"age"`
	MaritalStatus    string  `json:"marital_status"`
	FamilySize       int     `json:"family_size"`
	Dependents       int     `json:"dependents"`
	MonthlyIncome    float64 `json:"monthly_income"`
	TotalSavings     float64 `json:"total_savings"`
	PropertyValue    float64 `json:"property_value"`
	HasDisability    bool    `json:"has_disability"`
	MedicalSeverity  int     `json:"medical_severity"`
	EmploymentStatus string  `json:"employment_status"`
}

// ToOrdered returns the feature values in the fixed order the
// classifier expects.
func (f FeatureVector) ToOrdered() []interface{} {
	return []interface{}{
		f.Age,
		f.MaritalStatus,
		f.FamilySize,
		f.Dependents,
		f.MonthlyIncome,
		f.TotalSavings,
		f.PropertyValue,
		f.HasDisability,
		f.MedicalSeverity,
		f.EmploymentStatus,
	}
}

// Snapshot returns the vector as a map for audit entries and prompts.
func (f FeatureVector) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"age":               f.Age,
		"marital_status":    f.MaritalStatus,
		"family_size":       f.FamilySize,
		"dependents":        f.Dependents,
		"monthly_income":    f.MonthlyIncome,
		"total_savings":     f.TotalSavings,
		"property_value":    f.PropertyValue,
		"has_disability":    f.HasDisability,
		"medical_severity":  f.MedicalSeverity,
		"employment_status": f.EmploymentStatus,
	}
}
