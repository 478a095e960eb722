package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"legal_case_ai_go/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Case{}, &models.Analysis{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func stringPtr(s string) *string { return &s }

func createTestCase(t *testing.T, db *gorm.DB) *models.Case {
	t.Helper()
	created, err := CreateCase(db, CreateCaseInput{
		Title:    "Smith v. Jones",
		CaseType: models.CaseTypeCivil,
		CaseText: strings.Repeat("The plaintiff alleges breach of contract. ", 3),
	})
	if err != nil {
		t.Fatalf("failed to create test case: %v", err)
	}
	return created
}

func TestCreateCaseDefaultsAndNumber(t *testing.T) {
	db := setupTestDB(t)

	caseText := strings.Repeat("x", 60)
	created, err := CreateCase(db, CreateCaseInput{
		Title:    "Smith v. Jones",
		CaseType: models.CaseTypeCivil,
		CaseText: caseText,
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.CaseStatusPending, created.Status)
	assert.Equal(t, models.PriorityMedium, created.Priority)
	assert.Equal(t, "USD", created.Currency)
	assert.Equal(t, models.AccessLevelInternal, created.AccessLevel)

	// Short text becomes the summary verbatim.
	assert.NotNil(t, created.Summary)
	assert.Equal(t, caseText, *created.Summary)

	assert.NotNil(t, created.CaseNumber)
	assert.Regexp(t, `^CI-\d{4}-\d{3}$`, *created.CaseNumber)
}

func TestCreateCaseCollectsViolations(t *testing.T) {
	db := setupTestDB(t)

	_, err := CreateCase(db, CreateCaseInput{
		CaseType: "Maritime",
		CaseText: "too short",
	})
	assert.Error(t, err)

	verr, ok := err.(*models.ValidationError)
	assert.True(t, ok)
	fields := map[string]bool{}
	for _, violation := range verr.Violations {
		fields[violation.Field] = true
	}
	assert.True(t, fields["title"])
	assert.True(t, fields["caseText"])
	assert.True(t, fields["caseType"])
}

func TestCreateCaseNumberConflict(t *testing.T) {
	db := setupTestDB(t)

	first, err := CreateCase(db, CreateCaseInput{
		Title:      "First Filing",
		CaseType:   models.CaseTypeCivil,
		CaseText:   strings.Repeat("A dispute over a commercial lease agreement. ", 3),
		CaseNumber: stringPtr("ACME-1001"),
	})
	assert.NoError(t, err)
	assert.Equal(t, "ACME-1001", *first.CaseNumber)

	_, err = CreateCase(db, CreateCaseInput{
		Title:      "Second Filing",
		CaseType:   models.CaseTypeCivil,
		CaseText:   strings.Repeat("A dispute over a commercial lease agreement. ", 3),
		CaseNumber: stringPtr("ACME-1001"),
	})
	assert.Error(t, err)
	var cerr *models.ConflictError
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, "caseNumber", cerr.Field)
}

func TestCreateCaseSanitizesMarkup(t *testing.T) {
	db := setupTestDB(t)

	created, err := CreateCase(db, CreateCaseInput{
		Title:    "Sanitized Case",
		CaseType: models.CaseTypeCivil,
		CaseText: "<script>alert('x')</script>" + strings.Repeat("Plain facts of the matter restated here. ", 3),
	})
	assert.NoError(t, err)
	assert.NotContains(t, created.CaseText, "<script>")
}

func TestCreateCaseNormalizesTags(t *testing.T) {
	db := setupTestDB(t)

	created, err := CreateCase(db, CreateCaseInput{
		Title:    "Tagged Case",
		CaseType: models.CaseTypeLabor,
		CaseText: strings.Repeat("An employee disputes their dismissal terms. ", 3),
		Tags:     []string{" Wrongful-Dismissal ", "APPEAL"},
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"wrongful-dismissal", "appeal"}, created.Tags)
}

func TestUpdateCaseClosingStampsDate(t *testing.T) {
	db := setupTestDB(t)
	created := createTestCase(t, db)
	assert.Nil(t, created.DateClosed)

	updated, err := UpdateCase(db, created.ID, UpdateCaseInput{
		Status: stringPtr(models.CaseStatusClosed),
	})
	assert.NoError(t, err)
	assert.Equal(t, models.CaseStatusClosed, updated.Status)
	assert.NotNil(t, updated.DateClosed)
	assert.WithinDuration(t, time.Now(), *updated.DateClosed, 5*time.Second)

	// An explicit dateClosed survives.
	explicit := time.Now().AddDate(0, 0, -3)
	other := createTestCase(t, db)
	updated2, err := UpdateCase(db, other.ID, UpdateCaseInput{
		Status:     stringPtr(models.CaseStatusClosed),
		DateClosed: &explicit,
	})
	assert.NoError(t, err)
	assert.WithinDuration(t, explicit, *updated2.DateClosed, time.Second)
}

func TestUpdateCaseHearingDateCheckOnlyWhenProvided(t *testing.T) {
	db := setupTestDB(t)
	created := createTestCase(t, db)

	past := time.Now().AddDate(0, 0, -5)
	_, err := UpdateCase(db, created.ID, UpdateCaseInput{DateOfHearing: &past})
	assert.Error(t, err)

	// Editing other fields of a case with a past hearing date still works.
	db.Model(&models.Case{}).Where("id = ?", created.ID).Update("date_of_hearing", past)
	updated, err := UpdateCase(db, created.ID, UpdateCaseInput{Priority: stringPtr(models.PriorityHigh)})
	assert.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, updated.Priority)
}

func TestUpdateCaseNotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := UpdateCase(db, "missing-id", UpdateCaseInput{Priority: stringPtr(models.PriorityLow)})
	var nferr *models.NotFoundError
	assert.ErrorAs(t, err, &nferr)
}

func TestDeleteCaseCascades(t *testing.T) {
	db := setupTestDB(t)

	for _, analysisCount := range []int{0, 1, 3} {
		created := createTestCase(t, db)
		for i := 0; i < analysisCount; i++ {
			analysisTypes := []string{
				models.AnalysisTypeSummary,
				models.AnalysisTypeLegalIssues,
				models.AnalysisTypePrecedents,
			}
			_, err := CreateAnalysis(db, &models.Analysis{
				CaseID:       created.ID,
				AnalysisType: analysisTypes[i],
				AIProvider:   models.ProviderGroq,
				Model:        "llama3-8b-8192",
				PromptUsed:   "Summarize the case in plain language.",
				Result:       "Summary text.",
				Status:       models.AnalysisStatusCompleted,
			})
			assert.NoError(t, err)
		}

		deleted, err := DeleteCase(db, created.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(analysisCount), deleted)

		var remaining int64
		db.Model(&models.Analysis{}).Where("case_id = ?", created.ID).Count(&remaining)
		assert.Zero(t, remaining)

		var cases int64
		db.Model(&models.Case{}).Where("id = ?", created.ID).Count(&cases)
		assert.Zero(t, cases)
	}

	_, err := DeleteCase(db, "missing-id")
	var nferr *models.NotFoundError
	assert.ErrorAs(t, err, &nferr)
}

func TestAddTimelineEventKeepsOrder(t *testing.T) {
	db := setupTestDB(t)
	created := createTestCase(t, db)

	later := time.Now()
	earlier := later.AddDate(0, 0, -20)

	_, err := AddTimelineEvent(db, created.ID, models.TimelineEvent{
		Date: later, Event: "hearing scheduled", Type: models.TimelineEventHearing,
	})
	assert.NoError(t, err)

	updated, err := AddTimelineEvent(db, created.ID, models.TimelineEvent{
		Date: earlier, Event: "complaint filed", Type: models.TimelineEventFiling,
	})
	assert.NoError(t, err)

	assert.Len(t, updated.Timeline, 2)
	assert.Equal(t, "complaint filed", updated.Timeline[0].Event)
	assert.Equal(t, "hearing scheduled", updated.Timeline[1].Event)

	// Defaults: date now, type other.
	defaulted, err := AddTimelineEvent(db, created.ID, models.TimelineEvent{Event: "note added"})
	assert.NoError(t, err)
	last := defaulted.Timeline[len(defaulted.Timeline)-1]
	assert.Equal(t, models.TimelineEventOther, last.Type)
	assert.WithinDuration(t, time.Now(), last.Date, 5*time.Second)

	_, err = AddTimelineEvent(db, created.ID, models.TimelineEvent{})
	assert.Error(t, err)
}

func TestListCasesFilterAndPaginate(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 3; i++ {
		_, err := CreateCase(db, CreateCaseInput{
			Title:    "Civil Case",
			CaseType: models.CaseTypeCivil,
			CaseText: strings.Repeat("Contract dispute facts restated at length. ", 3),
		})
		assert.NoError(t, err)
	}
	_, err := CreateCase(db, CreateCaseInput{
		Title:    "Criminal Case",
		CaseType: models.CaseTypeCriminal,
		CaseText: strings.Repeat("Alleged offence facts restated at length. ", 3),
		Priority: stringPtr(models.PriorityHigh),
	})
	assert.NoError(t, err)

	cases, total, err := ListCases(db, CaseListFilter{CaseType: models.CaseTypeCivil})
	assert.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, cases, 3)

	cases, total, err = ListCases(db, CaseListFilter{Priority: models.PriorityHigh})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Criminal Case", cases[0].Title)

	cases, total, err = ListCases(db, CaseListFilter{Page: 1, Limit: 2})
	assert.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, cases, 2)
}

func TestSearchCases(t *testing.T) {
	db := setupTestDB(t)

	_, err := CreateCase(db, CreateCaseInput{
		Title:    "Smith v. Jones",
		CaseType: models.CaseTypeCivil,
		CaseText: strings.Repeat("Contract dispute between neighbours. ", 3),
		Parties:  &models.Parties{Plaintiff: "Robert Smith", Defendant: "Alice Jones"},
		Tags:     []string{"contract"},
	})
	assert.NoError(t, err)
	_, err = CreateCase(db, CreateCaseInput{
		Title:    "State v. Brown",
		CaseType: models.CaseTypeCriminal,
		CaseText: strings.Repeat("Alleged theft of industrial equipment. ", 3),
	})
	assert.NoError(t, err)

	results, total, err := SearchCases(db, "smith", 1, 10)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Smith v. Jones", results[0].Title)

	results, total, err = SearchCases(db, "contract", 1, 10)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = SearchCases(db, "nonexistent", 1, 10)
	assert.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = SearchCases(db, "   ", 1, 10)
	assert.Error(t, err)
}

func TestGetCaseStats(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 2; i++ {
		createTestCase(t, db)
	}
	closed := createTestCase(t, db)
	_, err := UpdateCase(db, closed.ID, UpdateCaseInput{Status: stringPtr(models.CaseStatusClosed)})
	assert.NoError(t, err)

	stats, err := GetCaseStats(db)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalCases)
	assert.Equal(t, int64(2), stats.StatusCounts[models.CaseStatusPending])
	assert.Equal(t, int64(1), stats.StatusCounts[models.CaseStatusClosed])
	assert.Equal(t, int64(3), stats.TypeCounts[models.CaseTypeCivil])
	assert.Len(t, stats.RecentCases, 3)
}

func TestGetPublicCaseView(t *testing.T) {
	db := setupTestDB(t)

	amount := 50000.0
	created, err := CreateCase(db, CreateCaseInput{
		Title:          "Confidential Matter",
		CaseType:       models.CaseTypeCommercial,
		CaseText:       strings.Repeat("Sensitive negotiation background detail. ", 3),
		ClaimAmount:    &amount,
		IsConfidential: func() *bool { b := true; return &b }(),
		Parties:        &models.Parties{Plaintiff: "Acme Corp"},
	})
	assert.NoError(t, err)

	view, err := GetPublicCaseView(db, created.ID)
	assert.NoError(t, err)
	assert.Empty(t, view.CaseText)
	assert.Nil(t, view.ClaimAmount)
	assert.True(t, view.Parties.IsEmpty())
	assert.Equal(t, "Confidential Matter", view.Title)
}
