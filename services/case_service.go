package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"legal_case_ai_go/models"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// textPolicy strips any markup from long-form user input before it is stored.
var textPolicy = bluemonday.StrictPolicy()

// CreateCaseInput carries the fields accepted when creating a case.
type CreateCaseInput struct {
	Title    string `json:"title"`
	CaseType string `json:"caseType"`
	CaseText string `json:"caseText"`

	CaseNumber   *string `json:"caseNumber,omitempty"`
	Court        *string `json:"court,omitempty"`
	Judge        *string `json:"judge,omitempty"`
	Jurisdiction *string `json:"jurisdiction,omitempty"`
	Summary      *string `json:"summary,omitempty"`
	Notes        *string `json:"notes,omitempty"`

	Parties *models.Parties `json:"parties,omitempty"`

	DateOfFiling  *time.Time `json:"dateOfFiling,omitempty"`
	DateOfHearing *time.Time `json:"dateOfHearing,omitempty"`

	Status      *string  `json:"status,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	ClaimAmount *float64 `json:"claimAmount,omitempty"`
	Currency    *string  `json:"currency,omitempty"`

	LegalIssues []string `json:"legalIssues,omitempty"`
	Statutes    []string `json:"statutes,omitempty"`
	Precedents  []string `json:"precedents,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	IsConfidential *bool   `json:"isConfidential,omitempty"`
	AccessLevel    *string `json:"accessLevel,omitempty"`
}

// UpdateCaseInput carries the fields accepted when updating a case. Only
// non-nil fields are applied.
type UpdateCaseInput struct {
	Title        *string `json:"title,omitempty"`
	CaseNumber   *string `json:"caseNumber,omitempty"`
	CaseType     *string `json:"caseType,omitempty"`
	Court        *string `json:"court,omitempty"`
	Judge        *string `json:"judge,omitempty"`
	Jurisdiction *string `json:"jurisdiction,omitempty"`
	CaseText     *string `json:"caseText,omitempty"`
	Summary      *string `json:"summary,omitempty"`
	Notes        *string `json:"notes,omitempty"`

	Parties *models.Parties `json:"parties,omitempty"`
	Outcome *models.Outcome `json:"outcome,omitempty"`

	DateOfFiling  *time.Time `json:"dateOfFiling,omitempty"`
	DateOfHearing *time.Time `json:"dateOfHearing,omitempty"`
	DateClosed    *time.Time `json:"dateClosed,omitempty"`

	Status      *string  `json:"status,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	ClaimAmount *float64 `json:"claimAmount,omitempty"`
	Currency    *string  `json:"currency,omitempty"`

	LegalIssues *[]string `json:"legalIssues,omitempty"`
	Statutes    *[]string `json:"statutes,omitempty"`
	Precedents  *[]string `json:"precedents,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`

	IsArchived     *bool   `json:"isArchived,omitempty"`
	IsConfidential *bool   `json:"isConfidential,omitempty"`
	AccessLevel    *string `json:"accessLevel,omitempty"`
}

// CreateCase validates the input, generates a case number when none is
// supplied, and persists the new case.
func CreateCase(db *gorm.DB, input CreateCaseInput) (*models.Case, error) {
	newCase := &models.Case{
		Title:         strings.TrimSpace(input.Title),
		CaseType:      strings.TrimSpace(input.CaseType),
		CaseText:      textPolicy.Sanitize(strings.TrimSpace(input.CaseText)),
		Court:         input.Court,
		Judge:         input.Judge,
		Jurisdiction:  input.Jurisdiction,
		DateOfFiling:  input.DateOfFiling,
		DateOfHearing: input.DateOfHearing,
		ClaimAmount:   input.ClaimAmount,
		LegalIssues:   input.LegalIssues,
		Statutes:      input.Statutes,
		Precedents:    input.Precedents,
		Tags:          input.Tags,
	}
	if input.Parties != nil {
		newCase.Parties = *input.Parties
	}
	if input.Summary != nil && *input.Summary != "" {
		summary := textPolicy.Sanitize(strings.TrimSpace(*input.Summary))
		newCase.Summary = &summary
	}
	if input.Notes != nil {
		notes := textPolicy.Sanitize(strings.TrimSpace(*input.Notes))
		newCase.Notes = &notes
	}
	if input.Status != nil {
		newCase.Status = *input.Status
	}
	if input.Priority != nil {
		newCase.Priority = *input.Priority
	}
	if input.Currency != nil {
		newCase.Currency = *input.Currency
	}
	if input.IsConfidential != nil {
		newCase.IsConfidential = *input.IsConfidential
	}
	if input.AccessLevel != nil {
		newCase.AccessLevel = *input.AccessLevel
	}
	if input.CaseNumber != nil && strings.TrimSpace(*input.CaseNumber) != "" {
		caseNumber := strings.TrimSpace(*input.CaseNumber)
		newCase.CaseNumber = &caseNumber
	}

	newCase.ApplyDefaults()
	newCase.NormalizeTags()

	if err := models.ValidateCase(newCase, models.CaseValidationOptions{CheckHearingDate: true}); err != nil {
		return nil, err
	}

	if newCase.CaseNumber != nil {
		if err := checkCaseNumberConflict(db, *newCase.CaseNumber, ""); err != nil {
			return nil, err
		}
	} else {
		generated, err := EnsureUniqueCaseNumber(db, newCase.CaseType)
		if err != nil {
			return nil, err
		}
		newCase.CaseNumber = &generated
	}

	if err := db.Create(newCase).Error; err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}
	return newCase, nil
}

// GetCase fetches one case by id with its derived read-time fields computed.
func GetCase(db *gorm.DB, id string) (*models.Case, error) {
	var c models.Case
	if err := db.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Resource: "case", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch case: %w", err)
	}
	c.ComputeDerived(time.Now())
	return &c, nil
}

// UpdateCase applies the provided fields, re-validates and persists. A status
// transition to Closed stamps dateClosed when it is absent.
func UpdateCase(db *gorm.DB, id string, input UpdateCaseInput) (*models.Case, error) {
	var c models.Case
	if err := db.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Resource: "case", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch case: %w", err)
	}

	if input.CaseNumber != nil {
		caseNumber := strings.TrimSpace(*input.CaseNumber)
		if c.CaseNumber == nil || caseNumber != *c.CaseNumber {
			if err := checkCaseNumberConflict(db, caseNumber, c.ID); err != nil {
				return nil, err
			}
		}
		c.CaseNumber = &caseNumber
	}
	if input.Title != nil {
		c.Title = strings.TrimSpace(*input.Title)
	}
	if input.CaseType != nil {
		c.CaseType = strings.TrimSpace(*input.CaseType)
	}
	if input.Court != nil {
		c.Court = input.Court
	}
	if input.Judge != nil {
		c.Judge = input.Judge
	}
	if input.Jurisdiction != nil {
		c.Jurisdiction = input.Jurisdiction
	}
	if input.CaseText != nil {
		c.CaseText = textPolicy.Sanitize(strings.TrimSpace(*input.CaseText))
	}
	if input.Summary != nil {
		summary := textPolicy.Sanitize(strings.TrimSpace(*input.Summary))
		c.Summary = &summary
	}
	if input.Notes != nil {
		notes := textPolicy.Sanitize(strings.TrimSpace(*input.Notes))
		c.Notes = &notes
	}
	if input.Parties != nil {
		c.Parties = *input.Parties
	}
	if input.Outcome != nil {
		c.Outcome = input.Outcome
	}
	if input.DateOfFiling != nil {
		c.DateOfFiling = input.DateOfFiling
	}
	if input.DateOfHearing != nil {
		c.DateOfHearing = input.DateOfHearing
	}
	if input.DateClosed != nil {
		c.DateClosed = input.DateClosed
	}
	if input.Status != nil {
		c.Status = *input.Status
	}
	if input.Priority != nil {
		c.Priority = *input.Priority
	}
	if input.ClaimAmount != nil {
		c.ClaimAmount = input.ClaimAmount
	}
	if input.Currency != nil {
		c.Currency = *input.Currency
	}
	if input.LegalIssues != nil {
		c.LegalIssues = *input.LegalIssues
	}
	if input.Statutes != nil {
		c.Statutes = *input.Statutes
	}
	if input.Precedents != nil {
		c.Precedents = *input.Precedents
	}
	if input.Tags != nil {
		c.Tags = *input.Tags
	}
	if input.IsArchived != nil {
		c.IsArchived = *input.IsArchived
	}
	if input.IsConfidential != nil {
		c.IsConfidential = *input.IsConfidential
	}
	if input.AccessLevel != nil {
		c.AccessLevel = *input.AccessLevel
	}

	opts := models.CaseValidationOptions{CheckHearingDate: input.DateOfHearing != nil}
	if err := models.ValidateCase(&c, opts); err != nil {
		return nil, err
	}

	if err := db.Save(&c).Error; err != nil {
		return nil, fmt.Errorf("failed to update case: %w", err)
	}
	return &c, nil
}

// DeleteCase removes a case and every analysis referencing it in one
// transaction, so no orphaned analyses can survive. Returns the number of
// cascaded analysis deletions.
func DeleteCase(db *gorm.DB, id string) (int64, error) {
	var deletedAnalyses int64

	err := db.Transaction(func(tx *gorm.DB) error {
		var c models.Case
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &models.NotFoundError{Resource: "case", ID: id}
			}
			return fmt.Errorf("failed to fetch case: %w", err)
		}

		result := tx.Where("case_id = ?", id).Delete(&models.Analysis{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete case analyses: %w", result.Error)
		}
		deletedAnalyses = result.RowsAffected

		if err := tx.Delete(&c).Error; err != nil {
			return fmt.Errorf("failed to delete case: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	releaseAnalysisSlots(id)
	zap.S().Infow("case deleted", "case_id", id, "analyses_deleted", deletedAnalyses)
	return deletedAnalyses, nil
}

// AddTimelineEvent appends an event to the case timeline, defaulting its date
// to now, and persists with the timeline re-sorted ascending by date.
func AddTimelineEvent(db *gorm.DB, id string, event models.TimelineEvent) (*models.Case, error) {
	var c models.Case
	if err := db.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Resource: "case", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch case: %w", err)
	}

	if strings.TrimSpace(event.Event) == "" {
		verr := &models.ValidationError{}
		verr.Add("event", "is required")
		return nil, verr
	}
	if event.Date.IsZero() {
		event.Date = time.Now()
	}
	if event.Type == "" {
		event.Type = models.TimelineEventOther
	}
	event.Event = strings.TrimSpace(event.Event)

	c.Timeline = append(c.Timeline, event)
	if err := db.Save(&c).Error; err != nil {
		return nil, fmt.Errorf("failed to save timeline event: %w", err)
	}
	return &c, nil
}

// AddDocument appends document metadata to the case and persists.
func AddDocument(db *gorm.DB, id string, doc models.CaseDocument) (*models.Case, error) {
	var c models.Case
	if err := db.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Resource: "case", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch case: %w", err)
	}

	if strings.TrimSpace(doc.Name) == "" {
		verr := &models.ValidationError{}
		verr.Add("name", "is required")
		return nil, verr
	}
	if doc.Type == "" {
		doc.Type = models.DocumentTypeOther
	}
	if doc.UploadDate.IsZero() {
		doc.UploadDate = time.Now()
	}
	doc.Name = strings.TrimSpace(doc.Name)

	c.Documents = append(c.Documents, doc)
	if err := db.Save(&c).Error; err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	return &c, nil
}

// GetPublicCaseView returns the case with confidential content stripped.
func GetPublicCaseView(db *gorm.DB, id string) (*models.Case, error) {
	c, err := GetCase(db, id)
	if err != nil {
		return nil, err
	}
	view := c.PublicView()
	return &view, nil
}

// CaseListFilter narrows and orders a case listing.
type CaseListFilter struct {
	CaseType string
	Status   string
	Priority string
	SortBy   string
	Order    string
	Page     int
	Limit    int
}

var caseSortColumns = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"title":          true,
	"case_number":    true,
	"status":         true,
	"priority":       true,
	"date_of_filing": true,
}

// ListCases returns one page of cases plus the total match count.
func ListCases(db *gorm.DB, filter CaseListFilter) ([]models.Case, int64, error) {
	query := db.Model(&models.Case{})
	if filter.CaseType != "" {
		query = query.Where("case_type = ?", filter.CaseType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	sortBy := filter.SortBy
	if !caseSortColumns[sortBy] {
		sortBy = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(filter.Order, "asc") {
		order = "ASC"
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	var cases []models.Case
	if err := query.
		Order(fmt.Sprintf("%s %s", sortBy, order)).
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&cases).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch cases: %w", err)
	}

	now := time.Now()
	for i := range cases {
		cases[i].ComputeDerived(now)
	}
	return cases, total, nil
}

// SearchCases performs a case-insensitive substring search over title, case
// number, plaintiff, defendant and tags.
func SearchCases(db *gorm.DB, query string, page, limit int) ([]models.Case, int64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		verr := &models.ValidationError{}
		verr.Add("query", "is required")
		return nil, 0, verr
	}

	// Broad SQL prefilter; the serialized parties/tags columns are matched
	// precisely below.
	pattern := "%" + strings.ToLower(query) + "%"
	var candidates []models.Case
	if err := db.
		Where("LOWER(title) LIKE ? OR LOWER(case_number) LIKE ? OR LOWER(parties) LIKE ? OR LOWER(tags) LIKE ?",
			pattern, pattern, pattern, pattern).
		Order("created_at DESC").
		Find(&candidates).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search cases: %w", err)
	}

	needle := strings.ToLower(query)
	matches := make([]models.Case, 0, len(candidates))
	for _, c := range candidates {
		if matchesCaseQuery(&c, needle) {
			matches = append(matches, c)
		}
	}

	total := int64(len(matches))
	page, limit = normalizePage(page, limit)
	start := (page - 1) * limit
	if start >= len(matches) {
		return []models.Case{}, total, nil
	}
	end := start + limit
	if end > len(matches) {
		end = len(matches)
	}

	now := time.Now()
	pageItems := matches[start:end]
	for i := range pageItems {
		pageItems[i].ComputeDerived(now)
	}
	return pageItems, total, nil
}

func matchesCaseQuery(c *models.Case, needle string) bool {
	if strings.Contains(strings.ToLower(c.Title), needle) {
		return true
	}
	if c.CaseNumber != nil && strings.Contains(strings.ToLower(*c.CaseNumber), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(c.Parties.Plaintiff), needle) && c.Parties.Plaintiff != "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.Parties.Defendant), needle) && c.Parties.Defendant != "" {
		return true
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// CaseStats is the statistics overview of the case book.
type CaseStats struct {
	TotalCases   int64            `json:"totalCases"`
	StatusCounts map[string]int64 `json:"statusStats"`
	TypeCounts   map[string]int64 `json:"typeStats"`
	RecentCases  []models.Case    `json:"recentCases"`
}

// GetCaseStats returns total, per-status and per-type counts plus the five
// most recent cases.
func GetCaseStats(db *gorm.DB) (*CaseStats, error) {
	stats := &CaseStats{
		StatusCounts: map[string]int64{},
		TypeCounts:   map[string]int64{},
	}

	if err := db.Model(&models.Case{}).Count(&stats.TotalCases).Error; err != nil {
		return nil, fmt.Errorf("failed to count cases: %w", err)
	}

	type groupCount struct {
		Value string
		Count int64
	}
	var statusRows []groupCount
	if err := db.Model(&models.Case{}).
		Select("status AS value, COUNT(*) AS count").
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return nil, fmt.Errorf("failed to group cases by status: %w", err)
	}
	for _, row := range statusRows {
		stats.StatusCounts[row.Value] = row.Count
	}

	var typeRows []groupCount
	if err := db.Model(&models.Case{}).
		Select("case_type AS value, COUNT(*) AS count").
		Group("case_type").
		Scan(&typeRows).Error; err != nil {
		return nil, fmt.Errorf("failed to group cases by type: %w", err)
	}
	for _, row := range typeRows {
		stats.TypeCounts[row.Value] = row.Count
	}

	if err := db.Model(&models.Case{}).
		Select("id", "title", "case_number", "case_type", "status", "created_at").
		Order("created_at DESC").
		Limit(5).
		Find(&stats.RecentCases).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recent cases: %w", err)
	}

	return stats, nil
}

func checkCaseNumberConflict(db *gorm.DB, caseNumber, excludeID string) error {
	query := db.Model(&models.Case{}).Where("case_number = ?", caseNumber)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check case number uniqueness: %w", err)
	}
	if count > 0 {
		return &models.ConflictError{Resource: "case", Field: "caseNumber", Value: caseNumber}
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}
