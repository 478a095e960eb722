package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"legal_case_ai_go/models"
)

var caseExportHeaders = []string{
	"Case Number", "Title", "Type", "Status", "Priority",
	"Court", "Plaintiff", "Defendant", "Date of Filing",
	"Claim Amount", "Currency", "Analyses", "Tags", "Created",
}

// ExportCasesToExcel writes the filtered case book to an xlsx workbook.
// Confidential cases are exported through their public view so restricted
// fields never leave the system in bulk.
func ExportCasesToExcel(db *gorm.DB, filter CaseListFilter) (*bytes.Buffer, error) {
	filter.Page = 1
	filter.Limit = 100
	var all []models.Case
	for {
		page, total, err := ListCases(db, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if int64(len(all)) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Cases"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for i, header := range caseExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for rowIdx, c := range all {
		if c.IsConfidential {
			c = c.PublicView()
		}
		row := rowIdx + 2
		values := []interface{}{
			derefOrEmpty(c.CaseNumber),
			c.Title,
			c.CaseType,
			c.Status,
			c.Priority,
			derefOrEmpty(c.Court),
			c.Parties.Plaintiff,
			c.Parties.Defendant,
			formatExportDate(c.DateOfFiling),
			claimAmountOrEmpty(c.ClaimAmount),
			c.Currency,
			c.AnalysisCount,
			strings.Join(c.Tags, ", "),
			c.CreatedAt.Format("2006-01-02"),
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, row)
			f.SetCellValue(sheet, cell, value)
		}
	}

	f.SetColWidth(sheet, "A", "B", 24)
	f.SetColWidth(sheet, "C", "N", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func claimAmountOrEmpty(amount *float64) interface{} {
	if amount == nil {
		return ""
	}
	return *amount
}

func formatExportDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
