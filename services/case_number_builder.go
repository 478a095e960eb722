package services

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"legal_case_ai_go/models"

	"gorm.io/gorm"
)

// CaseNumberComponents contains the parsed components of a generated case
// number. Format: {TYPE_PREFIX(2)}-{YEAR(4)}-{SEQUENCE(3)}, e.g. CI-2026-042.
type CaseNumberComponents struct {
	TypePrefix string
	Year       int
	Sequence   string
}

// CaseTypePrefix derives the 2-letter uppercase prefix from a case type,
// e.g. "Civil" -> "CI", "Intellectual Property" -> "IN".
func CaseTypePrefix(caseType string) string {
	letters := make([]rune, 0, 2)
	for _, r := range strings.ToUpper(caseType) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
		}
		if len(letters) == 2 {
			break
		}
	}
	if len(letters) < 2 {
		return "XX"
	}
	return string(letters)
}

// GenerateCaseNumber builds a candidate case number from the case type, the
// current year and a random 3-digit suffix.
func GenerateCaseNumber(caseType string) string {
	return fmt.Sprintf("%s-%d-%03d", CaseTypePrefix(caseType), time.Now().Year(), rand.Intn(1000))
}

// EnsureUniqueCaseNumber generates a case number that does not yet exist in
// the store, retrying on collisions.
func EnsureUniqueCaseNumber(db *gorm.DB, caseType string) (string, error) {
	const maxRetries = 25

	for i := 0; i < maxRetries; i++ {
		caseNumber := GenerateCaseNumber(caseType)

		var count int64
		if err := db.Model(&models.Case{}).Where("case_number = ?", caseNumber).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check case number uniqueness: %w", err)
		}
		if count == 0 {
			return caseNumber, nil
		}

		// Collision detected, retry
	}

	return "", fmt.Errorf("failed to generate unique case number after %d retries", maxRetries)
}

// ParseCaseNumber parses a generated case number into its components.
func ParseCaseNumber(caseNumber string) (*CaseNumberComponents, error) {
	caseNumber = strings.TrimSpace(caseNumber)

	parts := strings.Split(caseNumber, "-")
	if len(parts) != 3 || len(parts[0]) != 2 || len(parts[1]) != 4 || len(parts[2]) != 3 {
		return nil, fmt.Errorf("case number must match XX-YYYY-NNN, got %q", caseNumber)
	}

	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("case number year is not numeric: %q", parts[1])
	}

	return &CaseNumberComponents{
		TypePrefix: parts[0],
		Year:       year,
		Sequence:   parts[2],
	}, nil
}
