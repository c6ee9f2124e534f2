package validator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/models"
)

func consistentDocuments() map[string]string {
	return map[string]string{
		models.DocIdentity:      "Name: Sara Ahmed, Family: 5, Identity: Pass",
		models.DocBankStatement: "Salary: 4,000.00, Balance: 12,340.00, Identity: Pass",
		models.DocCreditReport:  "Income: 4,000.00, Savings: 8,000.00, Identity: Pass",
	}
}

func newRecord(docs map[string]string) *models.ApplicationRecord {
	return models.NewApplicationRecord("app-001", models.FormFields{
		Name:       "Sara Ahmed",
		FamilySize: 5,
	}, docs)
}

func TestExecuteAllChecksPass(t *testing.T) {
	h := NewHandler(DefaultConfig(), logger.NewTestLogger(t))

	result, err := h.Execute(context.Background(), newRecord(consistentDocuments()))
	require.NoError(t, err)

	assert.Equal(t, models.VerdictValidated, result.Update.Verdict)
	assert.Empty(t, result.Update.ValidationReasons)
	assert.Equal(t, models.Outcome(""), result.Update.Outcome)
}

func TestExecuteIdentityFailure(t *testing.T) {
	docs := consistentDocuments()
	docs[models.DocBankStatement] = "Salary: 4,000.00, Identity: Fail (ID number mismatch)"

	h := NewHandler(DefaultConfig(), logger.NewTestLogger(t))
	result, err := h.Execute(context.Background(), newRecord(docs))
	require.NoError(t, err)

	assert.Equal(t, models.VerdictRejected, result.Update.Verdict)
	assert.Equal(t, models.OutcomeRejected, result.Update.Outcome)
	require.Len(t, result.Update.ValidationReasons, 1)
	assert.Contains(t, result.Update.ValidationReasons[0], "Bank Statement")
	assert.Contains(t, result.Update.ValidationReasons[0], "ID number mismatch")
}

func TestExecuteIncomeTolerance(t *testing.T) {
	tests := []struct {
		name         string
		creditIncome string
		wantRejected bool
	}{
		{"equal figures", "4,000.00", false},
		{"difference exactly at tolerance", "4,500.00", false},
		{"difference just over tolerance", "4,501.00", true},
		{"gross mismatch", "18,000.00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := consistentDocuments()
			docs[models.DocCreditReport] = fmt.Sprintf("Income: %s, Identity: Pass", tt.creditIncome)

			h := NewHandler(DefaultConfig(), logger.NewTestLogger(t))
			result, err := h.Execute(context.Background(), newRecord(docs))
			require.NoError(t, err)

			if tt.wantRejected {
				assert.Equal(t, models.VerdictRejected, result.Update.Verdict)
				require.NotEmpty(t, result.Update.ValidationReasons)
				assert.Contains(t, result.Update.ValidationReasons[0], "salary mismatch")
			} else {
				assert.Equal(t, models.VerdictValidated, result.Update.Verdict)
			}
		})
	}
}

func TestExecuteFamilySizeMismatch(t *testing.T) {
	tests := []struct {
		name         string
		declared     int
		idFamily     int
		wantRejected bool
	}{
		{"exact match", 5, 5, false},
		{"off by one", 5, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := consistentDocuments()
			docs[models.DocIdentity] = fmt.Sprintf("Family: %d, Identity: Pass", tt.idFamily)

			rec := newRecord(docs)
			rec.Form.FamilySize = tt.declared

			h := NewHandler(DefaultConfig(), logger.NewTestLogger(t))
			result, err := h.Execute(context.Background(), rec)
			require.NoError(t, err)

			if tt.wantRejected {
				assert.Equal(t, models.VerdictRejected, result.Update.Verdict)
				assert.Contains(t, result.Update.ValidationReasons[0], "family size mismatch")
			} else {
				assert.Equal(t, models.VerdictValidated, result.Update.Verdict)
			}
		})
	}
}

func TestExecuteReportsAllFailures(t *testing.T) {
	docs := map[string]string{
		models.DocIdentity:      "Family: 3, Identity: Fail (address keyword missing)",
		models.DocBankStatement: "Salary: 5,000.00, Identity: Pass",
		models.DocCreditReport:  "Income: 18,000.00, Identity: Pass",
	}

	rec := newRecord(docs)
	rec.Form.FamilySize = 5

	h := NewHandler(DefaultConfig(), logger.NewTestLogger(t))
	result, err := h.Execute(context.Background(), rec)
	require.NoError(t, err)

	// Identity, income and family-size failures are all itemized.
	assert.Len(t, result.Update.ValidationReasons, 3)
}

func TestExecuteMissingDocumentsDoNotReject(t *testing.T) {
	h := NewHandler(DefaultConfig(), logger.NewTestLogger(t))

	result, err := h.Execute(context.Background(), newRecord(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, models.VerdictValidated, result.Update.Verdict)
}

func TestExecuteReasonsAreDeterministic(t *testing.T) {
	docs := consistentDocuments()
	docs[models.DocCreditReport] = "Income: 18,000.00, Identity: Pass"

	h := NewHandler(DefaultConfig(), logger.NewTestLogger(t))

	first, err := h.Execute(context.Background(), newRecord(docs))
	require.NoError(t, err)
	second, err := h.Execute(context.Background(), newRecord(docs))
	require.NoError(t, err)

	assert.Equal(t, first.Update.ValidationReasons, second.Update.ValidationReasons)
}
