package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validCaseFixture() *Case {
	c := &Case{
		Title:    "Smith v. Jones",
		CaseType: CaseTypeCivil,
		CaseText: strings.Repeat("The plaintiff alleges breach of contract. ", 3),
	}
	c.ApplyDefaults()
	return c
}

func TestValidateCaseCollectsAllViolations(t *testing.T) {
	c := &Case{
		CaseType: "Maritime",
		CaseText: "too short",
		Status:   "Pending",
	}
	err := ValidateCase(c, CaseValidationOptions{})
	assert.Error(t, err)

	verr, ok := err.(*ValidationError)
	assert.True(t, ok)

	fields := map[string]bool{}
	for _, violation := range verr.Violations {
		fields[violation.Field] = true
	}
	// One pass reports the missing title, the short text and the bad type.
	assert.True(t, fields["title"])
	assert.True(t, fields["caseText"])
	assert.True(t, fields["caseType"])
}

func TestValidateCaseDates(t *testing.T) {
	future := time.Now().AddDate(0, 0, 10)
	past := time.Now().AddDate(0, 0, -10)

	c := validCaseFixture()
	c.DateOfFiling = &future
	assert.Error(t, ValidateCase(c, CaseValidationOptions{}))

	// A past hearing date only fails when the caller asks for the check,
	// so historical records can still be edited.
	c2 := validCaseFixture()
	c2.DateOfHearing = &past
	assert.NoError(t, ValidateCase(c2, CaseValidationOptions{}))
	assert.Error(t, ValidateCase(c2, CaseValidationOptions{CheckHearingDate: true}))

	c3 := validCaseFixture()
	c3.DateOfHearing = &future
	assert.NoError(t, ValidateCase(c3, CaseValidationOptions{CheckHearingDate: true}))
}

func TestIsValidCaseNumber(t *testing.T) {
	assert.True(t, IsValidCaseNumber("CI-2026-042"))
	assert.True(t, IsValidCaseNumber("ACME-12345"))
	assert.False(t, IsValidCaseNumber("X-1"))
	assert.False(t, IsValidCaseNumber("no spaces here please"))
	assert.False(t, IsValidCaseNumber(""))
}

func TestModelAllowList(t *testing.T) {
	list := DefaultModelAllowList()

	assert.True(t, list.Allows(ProviderGroq, "llama3-8b-8192"))
	assert.False(t, list.Allows(ProviderGroq, "gpt-4"))
	assert.True(t, list.Allows(ProviderOpenAI, "gpt-4"))
	// Custom providers accept any model string.
	assert.True(t, list.Allows(ProviderCustom, "my-fine-tune"))
}

func validAnalysisFixture() *Analysis {
	a := &Analysis{
		CaseID:       "case-1",
		AnalysisType: AnalysisTypeSummary,
		AIProvider:   ProviderGroq,
		Model:        "llama3-8b-8192",
		PromptUsed:   strings.Repeat("Summarize this case. ", 3),
		Result:       "The case concerns a contract dispute.",
		Status:       AnalysisStatusCompleted,
	}
	a.ApplyDefaults()
	return a
}

func TestValidateAnalysis(t *testing.T) {
	assert.NoError(t, ValidateAnalysis(validAnalysisFixture(), DefaultModelAllowList()))

	a := validAnalysisFixture()
	a.AnalysisType = "horoscope"
	a.Model = "gpt-4"
	err := ValidateAnalysis(a, DefaultModelAllowList())
	assert.Error(t, err)

	verr := err.(*ValidationError)
	fields := map[string]bool{}
	for _, violation := range verr.Violations {
		fields[violation.Field] = true
	}
	assert.True(t, fields["analysisType"])
	assert.True(t, fields["model"])
}

func TestValidateAnalysisResultRequiredOnlyWhenCompleted(t *testing.T) {
	a := validAnalysisFixture()
	a.Result = ""
	assert.Error(t, ValidateAnalysis(a, DefaultModelAllowList()))

	// In-flight analyses have no result yet.
	processing := validAnalysisFixture()
	processing.Result = ""
	processing.Status = AnalysisStatusProcessing
	assert.NoError(t, ValidateAnalysis(processing, DefaultModelAllowList()))

	// Failed analyses persist without a result so the error is kept.
	failed := validAnalysisFixture()
	failed.Result = ""
	failed.Status = AnalysisStatusFailed
	failed.ErrorInfo = &ErrorInfo{Code: "quota", Message: "rate limit exceeded"}
	assert.NoError(t, ValidateAnalysis(failed, DefaultModelAllowList()))
}

func TestValidateAnalysisQualityScoreRange(t *testing.T) {
	tooHigh := 140.0
	a := validAnalysisFixture()
	a.QualityScore = &tooHigh
	assert.Error(t, ValidateAnalysis(a, DefaultModelAllowList()))

	ok := 85.5
	a.QualityScore = &ok
	assert.NoError(t, ValidateAnalysis(a, DefaultModelAllowList()))
}
