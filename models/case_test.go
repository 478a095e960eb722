package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSummary(t *testing.T) {
	short := "A short case description."
	assert.Equal(t, short, DeriveSummary(short))

	long := strings.Repeat("a", 450)
	summary := DeriveSummary(long)
	assert.Equal(t, 203, len(summary))
	assert.True(t, strings.HasSuffix(summary, "..."))
	assert.Equal(t, strings.Repeat("a", 200), summary[:200])

	// Exactly at the limit there is no truncation marker.
	exact := strings.Repeat("b", 200)
	assert.Equal(t, exact, DeriveSummary(exact))
}

func TestApplyDefaults(t *testing.T) {
	c := &Case{
		Title:    "State v. Doe",
		CaseType: CaseTypeCriminal,
		CaseText: strings.Repeat("The defendant is accused of fraud. ", 5),
	}
	c.ApplyDefaults()

	assert.Equal(t, CaseStatusPending, c.Status)
	assert.Equal(t, PriorityMedium, c.Priority)
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, AccessLevelInternal, c.AccessLevel)
	assert.NotNil(t, c.Summary)
	assert.Equal(t, c.CaseText, *c.Summary)
}

func TestNormalizeTags(t *testing.T) {
	c := &Case{Tags: []string{"  Fraud ", "APPEAL", ""}}
	c.NormalizeTags()
	assert.Equal(t, []string{"fraud", "appeal"}, c.Tags)
}

func TestSortTimeline(t *testing.T) {
	now := time.Now()
	c := &Case{Timeline: []TimelineEvent{
		{Date: now, Event: "hearing", Type: TimelineEventHearing},
		{Date: now.AddDate(0, 0, -30), Event: "filed", Type: TimelineEventFiling},
		{Date: now.AddDate(0, 0, -10), Event: "motion", Type: TimelineEventMotion},
	}}
	c.SortTimeline()

	assert.Equal(t, "filed", c.Timeline[0].Event)
	assert.Equal(t, "motion", c.Timeline[1].Event)
	assert.Equal(t, "hearing", c.Timeline[2].Event)
}

func TestComputeDerived(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	filed := now.AddDate(0, 0, -10)
	hearing := now.AddDate(0, 0, -1)
	closed := now.AddDate(0, 0, -2)

	c := &Case{Status: CaseStatusActive, DateOfFiling: &filed, DateOfHearing: &hearing}
	c.ComputeDerived(now)
	assert.NotNil(t, c.DaysSinceFiling)
	assert.Equal(t, 10, *c.DaysSinceFiling)
	assert.True(t, c.IsOverdue)
	assert.NotNil(t, c.DurationDays)
	assert.Equal(t, 10, *c.DurationDays)

	// A closed case is never overdue and reports its duration.
	c2 := &Case{Status: CaseStatusClosed, DateOfFiling: &filed, DateOfHearing: &hearing, DateClosed: &closed}
	c2.ComputeDerived(now)
	assert.False(t, c2.IsOverdue)
	assert.NotNil(t, c2.DurationDays)
	assert.Equal(t, 8, *c2.DurationDays)

	// No dates, no derived values.
	c3 := &Case{Status: CaseStatusPending}
	c3.ComputeDerived(now)
	assert.Nil(t, c3.DaysSinceFiling)
	assert.False(t, c3.IsOverdue)
}

func TestPublicViewStripsConfidentialFields(t *testing.T) {
	amount := 125000.0
	notes := "internal strategy notes"
	c := &Case{
		Title:          "Acme Corp v. Widget Inc",
		CaseText:       strings.Repeat("Sensitive contract dispute details. ", 3),
		IsConfidential: true,
		ClaimAmount:    &amount,
		Notes:          &notes,
		Parties:        Parties{Plaintiff: "Acme Corp", Defendant: "Widget Inc"},
		Documents:      []CaseDocument{{Name: "contract.pdf", Type: DocumentTypeContract}},
	}

	view := c.PublicView()
	assert.Empty(t, view.CaseText)
	assert.Nil(t, view.ClaimAmount)
	assert.Nil(t, view.Notes)
	assert.Empty(t, view.Documents)
	assert.True(t, view.Parties.IsEmpty())
	assert.Equal(t, c.Title, view.Title)

	// Non-confidential cases pass through untouched.
	c.IsConfidential = false
	open := c.PublicView()
	assert.Equal(t, c.CaseText, open.CaseText)
	assert.Equal(t, "Acme Corp", open.Parties.Plaintiff)
}

func TestIsValidCaseEnums(t *testing.T) {
	assert.True(t, IsValidCaseType(CaseTypeIntellectualProperty))
	assert.False(t, IsValidCaseType("Maritime"))
	assert.True(t, IsValidCaseStatus(CaseStatusOnHold))
	assert.False(t, IsValidCaseStatus("Archived"))
	assert.True(t, IsValidPriority(PriorityCritical))
	assert.False(t, IsValidPriority("Urgent"))
}
