package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"legal_case_ai_go/models"
	"legal_case_ai_go/services/ai"
)

// completedHooks run after an analysis reaches Completed. Registered once at
// startup; a failing hook never fails the write that triggered it.
var (
	completedHooksMu sync.RWMutex
	completedHooks   []func(db *gorm.DB, caseID string) error
)

// OnAnalysisCompleted registers a hook invoked whenever an analysis
// transitions to Completed.
func OnAnalysisCompleted(hook func(db *gorm.DB, caseID string) error) {
	completedHooksMu.Lock()
	defer completedHooksMu.Unlock()
	completedHooks = append(completedHooks, hook)
}

// resetAnalysisHooks exists for tests.
func resetAnalysisHooks() {
	completedHooksMu.Lock()
	defer completedHooksMu.Unlock()
	completedHooks = nil
}

func notifyAnalysisCompleted(db *gorm.DB, caseID string) {
	completedHooksMu.RLock()
	hooks := make([]func(db *gorm.DB, caseID string) error, len(completedHooks))
	copy(hooks, completedHooks)
	completedHooksMu.RUnlock()

	for _, hook := range hooks {
		if err := hook(db, caseID); err != nil {
			zap.S().Warnw("analysis completion hook failed", "case_id", caseID, "error", err)
		}
	}
}

// upsertLocks serializes concurrent upserts per (caseID, analysisType) so
// two racing requests cannot create duplicate rows.
var upsertLocks sync.Map

func lockAnalysisSlot(caseID, analysisType string) func() {
	key := caseID + "|" + analysisType
	mu, _ := upsertLocks.LoadOrStore(key, &sync.Mutex{})
	mutex := mu.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

// releaseAnalysisSlots drops the lock entries of a deleted case so the lock
// table does not grow with every case that ever saw an upsert. Upserts racing
// the delete fail their parent-case check, so losing serialization here is
// harmless.
func releaseAnalysisSlots(caseID string) {
	prefix := caseID + "|"
	upsertLocks.Range(func(key, _ interface{}) bool {
		if k, ok := key.(string); ok && strings.HasPrefix(k, prefix) {
			upsertLocks.Delete(key)
		}
		return true
	})
}

// CreateAnalysis validates and persists a new analysis record. The parent
// case must exist.
func CreateAnalysis(db *gorm.DB, analysis *models.Analysis) (*models.Analysis, error) {
	var count int64
	if err := db.Model(&models.Case{}).Where("id = ?", analysis.CaseID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check parent case: %w", err)
	}
	if count == 0 {
		return nil, &models.NotFoundError{Resource: "case", ID: analysis.CaseID}
	}

	analysis.ApplyDefaults()
	if err := models.ValidateAnalysis(analysis, models.DefaultModelAllowList()); err != nil {
		return nil, err
	}
	if analysis.Status == models.AnalysisStatusCompleted && analysis.CompletedAt == nil {
		now := time.Now()
		analysis.CompletedAt = &now
	}

	if err := db.Create(analysis).Error; err != nil {
		return nil, fmt.Errorf("failed to create analysis: %w", err)
	}

	if analysis.Status == models.AnalysisStatusCompleted {
		notifyAnalysisCompleted(db, analysis.CaseID)
	}
	return analysis, nil
}

// CreateOrUpdateAnalysis keeps at most one analysis per (case, type) slot:
// an existing row for the combination is overwritten in place, regardless of
// which provider produced it, otherwise a new row is created. Concurrent
// calls for the same slot are serialized.
func CreateOrUpdateAnalysis(db *gorm.DB, analysis *models.Analysis) (*models.Analysis, error) {
	unlock := lockAnalysisSlot(analysis.CaseID, analysis.AnalysisType)
	defer unlock()

	var existing models.Analysis
	err := db.Where("case_id = ? AND analysis_type = ?",
		analysis.CaseID, analysis.AnalysisType).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CreateAnalysis(db, analysis)
		}
		return nil, fmt.Errorf("failed to look up analysis slot: %w", err)
	}

	analysis.ID = existing.ID
	analysis.CreatedAt = existing.CreatedAt
	analysis.ApplyDefaults()
	if err := models.ValidateAnalysis(analysis, models.DefaultModelAllowList()); err != nil {
		return nil, err
	}
	if analysis.Status == models.AnalysisStatusCompleted && analysis.CompletedAt == nil {
		now := time.Now()
		analysis.CompletedAt = &now
	}

	if err := db.Save(analysis).Error; err != nil {
		return nil, fmt.Errorf("failed to update analysis: %w", err)
	}

	if analysis.Status == models.AnalysisStatusCompleted {
		notifyAnalysisCompleted(db, analysis.CaseID)
	}
	return analysis, nil
}

// GetAnalysis fetches one analysis by id.
func GetAnalysis(db *gorm.DB, id string) (*models.Analysis, error) {
	var analysis models.Analysis
	if err := db.First(&analysis, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Resource: "analysis", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch analysis: %w", err)
	}
	return &analysis, nil
}

// UpdateAnalysisInput carries the mutable analysis fields.
type UpdateAnalysisInput struct {
	Status           *string                  `json:"status,omitempty"`
	Result           *string                  `json:"result,omitempty"`
	StructuredResult *models.StructuredResult `json:"structuredResult,omitempty"`
	TokensUsed       *models.TokenUsage       `json:"tokensUsed,omitempty"`
	ProcessingTime   *int64                   `json:"processingTime,omitempty"`
	Cost             *models.Cost             `json:"cost,omitempty"`
	ErrorInfo        *models.ErrorInfo        `json:"errorInfo,omitempty"`
	Tags             *[]string                `json:"tags,omitempty"`
	IsBookmarked     *bool                    `json:"isBookmarked,omitempty"`
	IsArchived       *bool                    `json:"isArchived,omitempty"`
	Notes            *string                  `json:"notes,omitempty"`
}

// UpdateAnalysis applies the provided fields. Status moves out of a terminal
// state are rejected; a transition into Completed stamps completedAt and
// fires the completion hooks.
func UpdateAnalysis(db *gorm.DB, id string, input UpdateAnalysisInput) (*models.Analysis, error) {
	analysis, err := GetAnalysis(db, id)
	if err != nil {
		return nil, err
	}

	wasCompleted := analysis.Status == models.AnalysisStatusCompleted
	if input.Status != nil && *input.Status != analysis.Status {
		if analysis.IsTerminal() {
			verr := &models.ValidationError{}
			verr.Add("status", fmt.Sprintf("cannot transition out of terminal status %q", analysis.Status))
			return nil, verr
		}
		analysis.Status = *input.Status
	}
	if input.Result != nil {
		analysis.Result = *input.Result
	}
	if input.StructuredResult != nil {
		analysis.StructuredResult = input.StructuredResult
	}
	if input.TokensUsed != nil {
		analysis.TokensUsed = *input.TokensUsed
	}
	if input.ProcessingTime != nil {
		analysis.ProcessingTime = *input.ProcessingTime
	}
	if input.Cost != nil {
		analysis.Cost = *input.Cost
	}
	if input.ErrorInfo != nil {
		analysis.ErrorInfo = input.ErrorInfo
	}
	if input.Tags != nil {
		analysis.Tags = *input.Tags
	}
	if input.IsBookmarked != nil {
		analysis.IsBookmarked = *input.IsBookmarked
	}
	if input.IsArchived != nil {
		analysis.IsArchived = *input.IsArchived
	}
	if input.Notes != nil {
		analysis.Notes = input.Notes
	}

	if err := models.ValidateAnalysis(analysis, models.DefaultModelAllowList()); err != nil {
		return nil, err
	}

	completedNow := !wasCompleted && analysis.Status == models.AnalysisStatusCompleted
	if completedNow && analysis.CompletedAt == nil {
		now := time.Now()
		analysis.CompletedAt = &now
	}
	if analysis.Status == models.AnalysisStatusCompleted {
		analysis.CalculateQualityScore()
	}

	if err := db.Save(analysis).Error; err != nil {
		return nil, fmt.Errorf("failed to update analysis: %w", err)
	}

	if completedNow {
		notifyAnalysisCompleted(db, analysis.CaseID)
	}
	return analysis, nil
}

// DeleteAnalysis removes one analysis and refreshes the parent case counters.
func DeleteAnalysis(db *gorm.DB, id string) error {
	analysis, err := GetAnalysis(db, id)
	if err != nil {
		return err
	}
	if err := db.Delete(analysis).Error; err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if err := RefreshCaseAnalytics(db, analysis.CaseID); err != nil {
		zap.S().Warnw("failed to refresh case analytics after delete",
			"case_id", analysis.CaseID, "error", err)
	}
	return nil
}

// MarkAsReviewed records the reviewer on an analysis.
func MarkAsReviewed(db *gorm.DB, id, reviewedBy string) (*models.Analysis, error) {
	analysis, err := GetAnalysis(db, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reviewedBy) == "" {
		verr := &models.ValidationError{}
		verr.Add("reviewedBy", "is required")
		return nil, verr
	}
	now := time.Now()
	reviewer := strings.TrimSpace(reviewedBy)
	analysis.ReviewedBy = &reviewer
	analysis.ReviewedAt = &now
	if err := db.Save(analysis).Error; err != nil {
		return nil, fmt.Errorf("failed to mark analysis as reviewed: %w", err)
	}
	return analysis, nil
}

// AddUserFeedback replaces the user rating on an analysis and recomputes its
// quality score.
func AddUserFeedback(db *gorm.DB, id string, rating models.UserRating) (*models.Analysis, error) {
	analysis, err := GetAnalysis(db, id)
	if err != nil {
		return nil, err
	}

	analysis.UserRating = &rating
	if err := models.ValidateAnalysis(analysis, models.DefaultModelAllowList()); err != nil {
		return nil, err
	}
	analysis.UserRating.DeriveOverall()
	analysis.CalculateQualityScore()

	if err := db.Save(analysis).Error; err != nil {
		return nil, fmt.Errorf("failed to save user feedback: %w", err)
	}
	return analysis, nil
}

// AnalysesByCase returns every analysis for a case, newest first. The
// analysisType filter is optional.
func AnalysesByCase(db *gorm.DB, caseID, analysisType string) ([]models.Analysis, error) {
	query := db.Where("case_id = ?", caseID)
	if analysisType != "" {
		query = query.Where("analysis_type = ?", analysisType)
	}
	var analyses []models.Analysis
	if err := query.Order("created_at DESC").Find(&analyses).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch case analyses: %w", err)
	}
	return analyses, nil
}

// AnalysesByProvider returns every analysis produced by one provider.
func AnalysesByProvider(db *gorm.DB, provider string) ([]models.Analysis, error) {
	var analyses []models.Analysis
	if err := db.Where("ai_provider = ?", provider).
		Order("created_at DESC").Find(&analyses).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch provider analyses: %w", err)
	}
	return analyses, nil
}

// AnalysesByType returns every analysis of one type.
func AnalysesByType(db *gorm.DB, analysisType string) ([]models.Analysis, error) {
	var analyses []models.Analysis
	if err := db.Where("analysis_type = ?", analysisType).
		Order("created_at DESC").Find(&analyses).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch analyses by type: %w", err)
	}
	return analyses, nil
}

// AnalyticsRow is one provider-and-type aggregate bucket.
type AnalyticsRow struct {
	Provider          string  `json:"provider"`
	AnalysisType      string  `json:"analysisType"`
	Count             int64   `json:"count"`
	AvgProcessingTime float64 `json:"avgProcessingTime"`
	TotalTokens       int64   `json:"totalTokens"`
	TotalCost         float64 `json:"totalCost"`
	AvgCost           float64 `json:"avgCost"`
	AvgRating         float64 `json:"avgRating"`
	AvgQualityScore   float64 `json:"avgQualityScore"`
}

// AnalyticsData aggregates completed analyses by provider and type. Token and
// cost figures live in serialized JSON columns, so the aggregates read them
// with json_extract.
func AnalyticsData(db *gorm.DB) ([]AnalyticsRow, error) {
	var rows []AnalyticsRow
	err := db.Model(&models.Analysis{}).
		Select(
			"ai_provider AS provider",
			"analysis_type",
			"COUNT(*) AS count",
			"AVG(processing_time) AS avg_processing_time",
			"COALESCE(SUM(json_extract(tokens_used, '$.total')), 0) AS total_tokens",
			"COALESCE(SUM(json_extract(cost, '$.amount')), 0) AS total_cost",
			"COALESCE(AVG(json_extract(cost, '$.amount')), 0) AS avg_cost",
			"COALESCE(AVG(json_extract(user_rating, '$.overall')), 0) AS avg_rating",
			"COALESCE(AVG(quality_score), 0) AS avg_quality_score",
		).
		Where("status = ?", models.AnalysisStatusCompleted).
		Group("ai_provider, analysis_type").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate analytics: %w", err)
	}
	return rows, nil
}

// ProviderPerformance summarizes one provider's recent completed work.
type ProviderPerformance struct {
	Provider          string  `json:"provider"`
	Days              int     `json:"days"`
	TotalAnalyses     int64   `json:"totalAnalyses"`
	AvgProcessingTime float64 `json:"avgProcessingTime"`
	TotalTokens       int64   `json:"totalTokens"`
	TotalCost         float64 `json:"totalCost"`
	AvgCost           float64 `json:"avgCost"`
	AvgRating         float64 `json:"avgRating"`
	AvgQualityScore   float64 `json:"avgQualityScore"`
	SuccessRate       float64 `json:"successRate"`
}

// GetProviderPerformance aggregates one provider's analyses over the last
// given number of days.
func GetProviderPerformance(db *gorm.DB, provider string, days int) (*ProviderPerformance, error) {
	if !models.IsValidProvider(provider) {
		verr := &models.ValidationError{}
		verr.Add("provider", fmt.Sprintf("%q is not a supported provider", provider))
		return nil, verr
	}
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	perf := &ProviderPerformance{Provider: provider, Days: days}

	var total int64
	if err := db.Model(&models.Analysis{}).
		Where("ai_provider = ? AND created_at >= ?", provider, since).
		Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count provider analyses: %w", err)
	}
	perf.TotalAnalyses = total
	if total == 0 {
		return perf, nil
	}

	var completed int64
	if err := db.Model(&models.Analysis{}).
		Where("ai_provider = ? AND created_at >= ? AND status = ?",
			provider, since, models.AnalysisStatusCompleted).
		Count(&completed).Error; err != nil {
		return nil, fmt.Errorf("failed to count completed analyses: %w", err)
	}
	perf.SuccessRate = float64(completed) / float64(total) * 100

	type aggregate struct {
		AvgProcessingTime float64
		TotalTokens       int64
		TotalCost         float64
		AvgCost           float64
		AvgRating         float64
		AvgQualityScore   float64
	}
	var agg aggregate
	if err := db.Model(&models.Analysis{}).
		Select(
			"COALESCE(AVG(processing_time), 0) AS avg_processing_time",
			"COALESCE(SUM(json_extract(tokens_used, '$.total')), 0) AS total_tokens",
			"COALESCE(SUM(json_extract(cost, '$.amount')), 0) AS total_cost",
			"COALESCE(AVG(json_extract(cost, '$.amount')), 0) AS avg_cost",
			"COALESCE(AVG(json_extract(user_rating, '$.overall')), 0) AS avg_rating",
			"COALESCE(AVG(quality_score), 0) AS avg_quality_score",
		).
		Where("ai_provider = ? AND created_at >= ? AND status = ?",
			provider, since, models.AnalysisStatusCompleted).
		Scan(&agg).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate provider performance: %w", err)
	}
	perf.AvgProcessingTime = agg.AvgProcessingTime
	perf.TotalTokens = agg.TotalTokens
	perf.TotalCost = agg.TotalCost
	perf.AvgCost = agg.AvgCost
	perf.AvgRating = agg.AvgRating
	perf.AvgQualityScore = agg.AvgQualityScore
	return perf, nil
}

// AnalysisStats is the statistics overview of the analysis book.
type AnalysisStats struct {
	TotalAnalyses  int64            `json:"totalAnalyses"`
	StatusCounts   map[string]int64 `json:"statusStats"`
	ProviderCounts map[string]int64 `json:"providerStats"`
	TypeCounts     map[string]int64 `json:"typeStats"`
}

// GetAnalysisStats returns total plus per-status, per-provider and per-type
// counts.
func GetAnalysisStats(db *gorm.DB) (*AnalysisStats, error) {
	stats := &AnalysisStats{
		StatusCounts:   map[string]int64{},
		ProviderCounts: map[string]int64{},
		TypeCounts:     map[string]int64{},
	}

	if err := db.Model(&models.Analysis{}).Count(&stats.TotalAnalyses).Error; err != nil {
		return nil, fmt.Errorf("failed to count analyses: %w", err)
	}

	type groupCount struct {
		Value string
		Count int64
	}
	for column, target := range map[string]map[string]int64{
		"status":        stats.StatusCounts,
		"ai_provider":   stats.ProviderCounts,
		"analysis_type": stats.TypeCounts,
	} {
		var groupRows []groupCount
		if err := db.Model(&models.Analysis{}).
			Select(column + " AS value, COUNT(*) AS count").
			Group(column).
			Scan(&groupRows).Error; err != nil {
			return nil, fmt.Errorf("failed to group analyses by %s: %w", column, err)
		}
		for _, row := range groupRows {
			target[row.Value] = row.Count
		}
	}
	return stats, nil
}

// RunAnalysisInput describes one AI analysis run against a stored case.
type RunAnalysisInput struct {
	CaseID       string                `json:"caseId"`
	AnalysisType string                `json:"analysisType"`
	Provider     string                `json:"aiProvider"`
	Model        string                `json:"model"`
	Config       *models.RequestConfig `json:"requestConfig,omitempty"`
	CustomPrompt string                `json:"customPrompt,omitempty"`
	CreatedBy    *string               `json:"createdBy,omitempty"`
}

// RunAnalysis builds the prompt for a case, calls the provider gateway, and
// persists the outcome. A provider failure is recorded as a Failed analysis
// and the provider error is returned alongside it.
func RunAnalysis(ctx context.Context, db *gorm.DB, gw ai.Gateway, input RunAnalysisInput) (*models.Analysis, error) {
	if verr := validateRunInput(input); verr != nil {
		return nil, verr
	}

	legalCase, err := GetCase(db, input.CaseID)
	if err != nil {
		return nil, err
	}

	config := models.DefaultRequestConfig()
	if input.Config != nil {
		config = *input.Config
		if config.MaxTokens == 0 {
			config.MaxTokens = models.DefaultRequestConfig().MaxTokens
		}
	}

	prompt := input.CustomPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = ai.BuildPrompt(legalCase, input.AnalysisType)
	}

	model := input.Model
	result, err := gw.Generate(ctx, ai.Request{
		CaseContext:  prompt,
		AnalysisType: input.AnalysisType,
		Provider:     input.Provider,
		Model:        model,
		Config:       config,
	})
	if err != nil {
		if errors.Is(err, ai.ErrUnsupportedProvider) {
			return nil, err
		}
		failed, persistErr := recordFailedAnalysis(db, input, prompt, config, err)
		if persistErr != nil {
			zap.S().Errorw("failed to persist failed analysis",
				"case_id", input.CaseID, "error", persistErr)
		}
		return failed, err
	}

	analysis := &models.Analysis{
		CaseID:         input.CaseID,
		AnalysisType:   input.AnalysisType,
		AIProvider:     input.Provider,
		Model:          result.ModelUsed,
		RequestConfig:  config,
		PromptUsed:     prompt,
		Result:         result.Text,
		TokensUsed:     result.Tokens,
		ProcessingTime: result.ProcessingTime,
		Status:         models.AnalysisStatusCompleted,
		CreatedBy:      input.CreatedBy,
	}
	analysis.CalculateQualityScore()

	return CreateOrUpdateAnalysis(db, analysis)
}

func recordFailedAnalysis(db *gorm.DB, input RunAnalysisInput, prompt string, config models.RequestConfig, cause error) (*models.Analysis, error) {
	errorInfo := &models.ErrorInfo{Message: cause.Error()}
	var perr *ai.ProviderError
	if errors.As(cause, &perr) {
		errorInfo.Code = string(perr.Kind)
		errorInfo.Message = perr.Message
		if perr.Err != nil {
			errorInfo.Details = perr.Err.Error()
		}
	}

	// The failed record must survive model allow-list validation, so an
	// omitted model resolves to the provider default the gateway would
	// have used.
	model := input.Model
	if model == "" {
		model = ai.DefaultModel(input.Provider)
	}

	analysis := &models.Analysis{
		CaseID:        input.CaseID,
		AnalysisType:  input.AnalysisType,
		AIProvider:    input.Provider,
		Model:         model,
		RequestConfig: config,
		PromptUsed:    prompt,
		Status:        models.AnalysisStatusFailed,
		ErrorInfo:     errorInfo,
		CreatedBy:     input.CreatedBy,
	}
	return CreateOrUpdateAnalysis(db, analysis)
}

func validateRunInput(input RunAnalysisInput) error {
	verr := &models.ValidationError{}
	if strings.TrimSpace(input.CaseID) == "" {
		verr.Add("caseId", "is required")
	}
	if !models.IsValidAnalysisType(input.AnalysisType) {
		verr.Add("analysisType", fmt.Sprintf("%q is not a supported analysis type", input.AnalysisType))
	}
	if !models.IsValidProvider(input.Provider) {
		verr.Add("aiProvider", fmt.Sprintf("%q is not a supported provider", input.Provider))
	}
	if input.Model != "" && !models.DefaultModelAllowList().Allows(input.Provider, input.Model) {
		verr.Add("model", fmt.Sprintf("%q is not allowed for provider %q", input.Model, input.Provider))
	}
	return verr.ErrOrNil()
}

// BatchResult reports one analysis type's outcome within a batch run.
type BatchResult struct {
	AnalysisType string           `json:"analysisType"`
	Analysis     *models.Analysis `json:"analysis,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// RunBatchAnalysis runs several analysis types against one case. Each type
// succeeds or fails independently; one provider failure never aborts the
// rest of the batch.
func RunBatchAnalysis(ctx context.Context, db *gorm.DB, gw ai.Gateway, caseID, provider, model string, analysisTypes []string) ([]BatchResult, error) {
	if len(analysisTypes) == 0 {
		verr := &models.ValidationError{}
		verr.Add("analysisTypes", "at least one analysis type is required")
		return nil, verr
	}

	// Fail fast on a missing case rather than once per type.
	if _, err := GetCase(db, caseID); err != nil {
		return nil, err
	}

	results := make([]BatchResult, 0, len(analysisTypes))
	for _, analysisType := range analysisTypes {
		analysis, err := RunAnalysis(ctx, db, gw, RunAnalysisInput{
			CaseID:       caseID,
			AnalysisType: analysisType,
			Provider:     provider,
			Model:        model,
		})
		entry := BatchResult{AnalysisType: analysisType, Analysis: analysis}
		if err != nil {
			entry.Error = err.Error()
			zap.S().Warnw("batch analysis step failed",
				"case_id", caseID, "analysis_type", analysisType, "error", err)
		}
		results = append(results, entry)
	}
	return results, nil
}
