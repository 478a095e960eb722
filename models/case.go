package models

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Case type constants
const (
	CaseTypeCivil                = "Civil"
	CaseTypeCriminal             = "Criminal"
	CaseTypeConstitutional       = "Constitutional"
	CaseTypeAdministrative       = "Administrative"
	CaseTypeFamily               = "Family"
	CaseTypeCommercial           = "Commercial"
	CaseTypeLabor                = "Labor"
	CaseTypeTax                  = "Tax"
	CaseTypeImmigration          = "Immigration"
	CaseTypeEnvironmental        = "Environmental"
	CaseTypeIntellectualProperty = "Intellectual Property"
	CaseTypeOther                = "Other"
)

// Case status constants
const (
	CaseStatusActive      = "Active"
	CaseStatusPending     = "Pending"
	CaseStatusClosed      = "Closed"
	CaseStatusOnHold      = "On Hold"
	CaseStatusDismissed   = "Dismissed"
	CaseStatusSettled     = "Settled"
	CaseStatusTransferred = "Transferred"
)

// Priority constants
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// Access level constants
const (
	AccessLevelPublic     = "Public"
	AccessLevelInternal   = "Internal"
	AccessLevelRestricted = "Restricted"
)

// Timeline event type constants
const (
	TimelineEventFiling     = "filing"
	TimelineEventHearing    = "hearing"
	TimelineEventMotion     = "motion"
	TimelineEventOrder      = "order"
	TimelineEventSettlement = "settlement"
	TimelineEventOther      = "other"
)

// Document type constants
const (
	DocumentTypeContract       = "Contract"
	DocumentTypeEvidence       = "Evidence"
	DocumentTypePleading       = "Pleading"
	DocumentTypeJudgment       = "Judgment"
	DocumentTypeCorrespondence = "Correspondence"
	DocumentTypeOther          = "Other"
)

// Outcome result constants
const (
	OutcomeWon       = "Won"
	OutcomeLost      = "Lost"
	OutcomeSettled   = "Settled"
	OutcomeDismissed = "Dismissed"
	OutcomePending   = "Pending"
)

// summaryMaxChars is the truncation point for auto-derived summaries.
const summaryMaxChars = 200

// Parties holds the named parties of a case.
type Parties struct {
	Plaintiff       string   `json:"plaintiff,omitempty"`
	Defendant       string   `json:"defendant,omitempty"`
	PlaintiffLawyer string   `json:"plaintiffLawyer,omitempty"`
	DefendantLawyer string   `json:"defendantLawyer,omitempty"`
	OtherParties    []string `json:"otherParties,omitempty"`
}

// IsEmpty reports whether no party information is set.
func (p Parties) IsEmpty() bool {
	return p.Plaintiff == "" && p.Defendant == "" &&
		p.PlaintiffLawyer == "" && p.DefendantLawyer == "" && len(p.OtherParties) == 0
}

// CaseDocument is document metadata owned by a case. The binary content lives
// in the document storage, referenced by Path.
type CaseDocument struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Path        string    `json:"path,omitempty"`
	Size        int64     `json:"size,omitempty"`
	MimeType    string    `json:"mimeType,omitempty"`
	UploadDate  time.Time `json:"uploadDate"`
	Description string    `json:"description,omitempty"`
}

// TimelineEvent is a dated entry in the case timeline.
type TimelineEvent struct {
	Date        time.Time `json:"date"`
	Event       string    `json:"event"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	AddedBy     string    `json:"addedBy,omitempty"`
}

// Outcome records the final result of a case.
type Outcome struct {
	Result      string   `json:"result,omitempty"`
	AwardAmount *float64 `json:"awardAmount,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Case represents a legal matter under management. It is the aggregate root:
// parties, documents, timeline and outcome have no independent lifecycle.
type Case struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Title      string  `gorm:"not null" json:"title" validate:"required,max=200"`
	CaseNumber *string `gorm:"uniqueIndex" json:"caseNumber,omitempty"`
	CaseType   string  `gorm:"not null;index" json:"caseType" validate:"required"`
	Status     string  `gorm:"not null;default:Pending;index" json:"status"`
	Priority   string  `gorm:"not null;default:Medium" json:"priority"`

	Court        *string `json:"court,omitempty" validate:"omitempty,max=200"`
	Judge        *string `json:"judge,omitempty" validate:"omitempty,max=200"`
	Jurisdiction *string `json:"jurisdiction,omitempty" validate:"omitempty,max=200"`

	Parties Parties `gorm:"serializer:json" json:"parties"`

	DateOfFiling  *time.Time `json:"dateOfFiling,omitempty"`
	DateOfHearing *time.Time `json:"dateOfHearing,omitempty"`
	DateClosed    *time.Time `json:"dateClosed,omitempty"`

	CaseText string  `gorm:"type:text;not null" json:"caseText" validate:"required,min=50,max=50000"`
	Summary  *string `json:"summary,omitempty" validate:"omitempty,max=2000"`

	ClaimAmount *float64 `json:"claimAmount,omitempty" validate:"omitempty,min=0,max=999999999999"`
	Currency    string   `gorm:"default:USD" json:"currency"`

	LegalIssues []string `gorm:"serializer:json" json:"legalIssues,omitempty"`
	Statutes    []string `gorm:"serializer:json" json:"statutes,omitempty"`
	Precedents  []string `gorm:"serializer:json" json:"precedents,omitempty"`
	Tags        []string `gorm:"serializer:json" json:"tags,omitempty"`

	Documents []CaseDocument  `gorm:"serializer:json" json:"documents,omitempty"`
	Timeline  []TimelineEvent `gorm:"serializer:json" json:"timeline,omitempty"`

	// Maintained by the consistency coordinator, never set directly.
	AnalysisCount    int        `gorm:"not null;default:0" json:"analysisCount"`
	LastAnalysisDate *time.Time `json:"lastAnalysisDate,omitempty"`

	Outcome *Outcome `gorm:"serializer:json" json:"outcome,omitempty"`

	IsArchived     bool   `gorm:"not null;default:false" json:"isArchived"`
	IsConfidential bool   `gorm:"not null;default:false" json:"isConfidential"`
	AccessLevel    string `gorm:"default:Internal" json:"accessLevel"`

	Notes *string `json:"notes,omitempty" validate:"omitempty,max=5000"`

	// Derived at read time, never stored.
	DaysSinceFiling *int `gorm:"-" json:"daysSinceFiling,omitempty"`
	IsOverdue       bool `gorm:"-" json:"isOverdue"`
	DurationDays    *int `gorm:"-" json:"durationDays,omitempty"`
}

// BeforeCreate hook to generate UUID and apply defaults
func (c *Case) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.ApplyDefaults()
	return nil
}

// BeforeSave hook keeps the derived parts of the record consistent on every
// write: tags lowercased, timeline sorted, dateClosed stamped on close.
func (c *Case) BeforeSave(tx *gorm.DB) error {
	c.NormalizeTags()
	c.SortTimeline()
	if c.Status == CaseStatusClosed && c.DateClosed == nil {
		now := time.Now()
		c.DateClosed = &now
	}
	return nil
}

// TableName specifies the table name for Case model
func (Case) TableName() string {
	return "cases"
}

// ApplyDefaults fills the defaulted and auto-derived fields of a new case.
func (c *Case) ApplyDefaults() {
	if c.Status == "" {
		c.Status = CaseStatusPending
	}
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if c.AccessLevel == "" {
		c.AccessLevel = AccessLevelInternal
	}
	if (c.Summary == nil || *c.Summary == "") && c.CaseText != "" {
		summary := DeriveSummary(c.CaseText)
		c.Summary = &summary
	}
}

// DeriveSummary truncates case text to the first 200 characters, appending an
// ellipsis marker only when truncation occurred.
func DeriveSummary(caseText string) string {
	runes := []rune(caseText)
	if len(runes) <= summaryMaxChars {
		return caseText
	}
	return string(runes[:summaryMaxChars]) + "..."
}

// NormalizeTags lowercases and trims all tags, dropping empty ones.
func (c *Case) NormalizeTags() {
	if len(c.Tags) == 0 {
		return
	}
	normalized := make([]string, 0, len(c.Tags))
	for _, tag := range c.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			normalized = append(normalized, tag)
		}
	}
	c.Tags = normalized
}

// SortTimeline keeps timeline events in ascending date order.
func (c *Case) SortTimeline() {
	sort.SliceStable(c.Timeline, func(i, j int) bool {
		return c.Timeline[i].Date.Before(c.Timeline[j].Date)
	})
}

// ComputeDerived fills the read-time fields (daysSinceFiling, isOverdue,
// durationDays) relative to the given clock.
func (c *Case) ComputeDerived(now time.Time) {
	if c.DateOfFiling != nil {
		days := ceilDays(now.Sub(*c.DateOfFiling))
		c.DaysSinceFiling = &days

		end := now
		if c.DateClosed != nil {
			end = *c.DateClosed
		}
		duration := ceilDays(end.Sub(*c.DateOfFiling))
		c.DurationDays = &duration
	}
	c.IsOverdue = c.DateOfHearing != nil && c.DateOfHearing.Before(now) && c.Status != CaseStatusClosed
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

// PublicView returns a copy of the case safe to show outside the firm:
// confidential cases have their substantive content stripped.
func (c *Case) PublicView() Case {
	view := *c
	if c.IsConfidential {
		view.CaseText = ""
		view.Parties = Parties{}
		view.ClaimAmount = nil
		view.Documents = nil
		view.Notes = nil
	}
	return view
}

// IsClosed checks if the case is closed
func (c *Case) IsClosed() bool {
	return c.Status == CaseStatusClosed
}

// ValidCaseTypes returns the supported case type values.
func ValidCaseTypes() []string {
	return []string{
		CaseTypeCivil, CaseTypeCriminal, CaseTypeConstitutional,
		CaseTypeAdministrative, CaseTypeFamily, CaseTypeCommercial,
		CaseTypeLabor, CaseTypeTax, CaseTypeImmigration,
		CaseTypeEnvironmental, CaseTypeIntellectualProperty, CaseTypeOther,
	}
}

// IsValidCaseType checks if the case type is valid
func IsValidCaseType(caseType string) bool {
	return contains(ValidCaseTypes(), caseType)
}

// ValidCaseStatuses returns the supported case status values.
func ValidCaseStatuses() []string {
	return []string{
		CaseStatusActive, CaseStatusPending, CaseStatusClosed,
		CaseStatusOnHold, CaseStatusDismissed, CaseStatusSettled,
		CaseStatusTransferred,
	}
}

// IsValidCaseStatus checks if the status is valid
func IsValidCaseStatus(status string) bool {
	return contains(ValidCaseStatuses(), status)
}

// ValidPriorities returns the supported priority values.
func ValidPriorities() []string {
	return []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// IsValidPriority checks if the priority is valid
func IsValidPriority(priority string) bool {
	return contains(ValidPriorities(), priority)
}

// IsValidAccessLevel checks if the access level is valid
func IsValidAccessLevel(level string) bool {
	return contains([]string{AccessLevelPublic, AccessLevelInternal, AccessLevelRestricted}, level)
}

// IsValidOutcomeResult checks if the outcome result is valid
func IsValidOutcomeResult(result string) bool {
	return contains([]string{OutcomeWon, OutcomeLost, OutcomeSettled, OutcomeDismissed, OutcomePending}, result)
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
