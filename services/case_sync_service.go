package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"legal_case_ai_go/models"
)

// RefreshCaseAnalytics recounts a case's analyses and stamps the last
// analysis date. The count is recomputed from the analyses table, never
// incremented, so repeated refreshes converge on the true value.
func RefreshCaseAnalytics(db *gorm.DB, caseID string) error {
	var c models.Case
	if err := db.First(&c, "id = ?", caseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.NotFoundError{Resource: "case", ID: caseID}
		}
		return fmt.Errorf("failed to fetch case: %w", err)
	}

	var count int64
	if err := db.Model(&models.Analysis{}).Where("case_id = ?", caseID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count case analyses: %w", err)
	}

	updates := map[string]interface{}{
		"analysis_count":     count,
		"last_analysis_date": time.Now(),
	}
	if err := db.Model(&c).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update case analytics: %w", err)
	}
	return nil
}

// HandleAnalysisCompleted is the completion hook keeping case counters in
// step with the analyses table. A refresh failure is logged and swallowed so
// the completed analysis write stands on its own.
func HandleAnalysisCompleted(db *gorm.DB, caseID string) error {
	if err := RefreshCaseAnalytics(db, caseID); err != nil {
		zap.S().Warnw("case analytics refresh failed after analysis completion",
			"case_id", caseID, "error", err)
	}
	return nil
}

// ReconcileAllCases recomputes the analysis count of every case that has
// drifted from the analyses table. Returns the number of cases corrected.
func ReconcileAllCases(db *gorm.DB) (int, error) {
	var cases []models.Case
	if err := db.Select("id", "analysis_count").Find(&cases).Error; err != nil {
		return 0, fmt.Errorf("failed to list cases: %w", err)
	}

	corrected := 0
	for _, c := range cases {
		var count int64
		if err := db.Model(&models.Analysis{}).Where("case_id = ?", c.ID).Count(&count).Error; err != nil {
			return corrected, fmt.Errorf("failed to count analyses for case %s: %w", c.ID, err)
		}
		if int(count) == c.AnalysisCount {
			continue
		}
		if err := db.Model(&models.Case{}).Where("id = ?", c.ID).
			Update("analysis_count", count).Error; err != nil {
			return corrected, fmt.Errorf("failed to correct case %s: %w", c.ID, err)
		}
		zap.S().Infow("reconciled case analysis count",
			"case_id", c.ID, "was", c.AnalysisCount, "now", count)
		corrected++
	}
	return corrected, nil
}

// StartReconciliationJob schedules the hourly sweep that corrects any case
// counters left stale by crashed writes or out-of-band deletions.
func StartReconciliationJob(db *gorm.DB) (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc("@hourly", func() {
		corrected, err := ReconcileAllCases(db)
		if err != nil {
			zap.S().Errorw("case reconciliation sweep failed", "error", err)
			return
		}
		if corrected > 0 {
			zap.S().Infow("case reconciliation sweep finished", "corrected", corrected)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reconciliation job: %w", err)
	}
	scheduler.Start()
	return scheduler, nil
}
