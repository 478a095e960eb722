package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Analysis type constants
const (
	AnalysisTypeSummary                = "summary"
	AnalysisTypeLegalIssues            = "legal_issues"
	AnalysisTypePrecedents             = "precedents"
	AnalysisTypeOutcomePrediction      = "outcome_prediction"
	AnalysisTypeRiskAssessment         = "risk_assessment"
	AnalysisTypeStrategyRecommendation = "strategy_recommendation"
	AnalysisTypeDocumentAnalysis       = "document_analysis"
	AnalysisTypeSettlementEvaluation   = "settlement_evaluation"
	AnalysisTypeComplianceCheck        = "compliance_check"
	AnalysisTypeEvidenceEvaluation     = "evidence_evaluation"
	AnalysisTypeWitnessAnalysis        = "witness_analysis"
	AnalysisTypeTimelineAnalysis       = "timeline_analysis"
)

// AI provider constants
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
	ProviderClaude = "claude"
	ProviderCustom = "custom"
)

// Analysis status constants
const (
	AnalysisStatusProcessing = "Processing"
	AnalysisStatusCompleted  = "Completed"
	AnalysisStatusFailed     = "Failed"
	AnalysisStatusCancelled  = "Cancelled"
	AnalysisStatusQueued     = "Queued"
)

// RequestConfig holds the generation parameters sent to the provider.
type RequestConfig struct {
	Temperature      float32 `json:"temperature" validate:"min=0,max=2"`
	MaxTokens        int     `json:"maxTokens" validate:"min=1,max=32768"`
	TopP             float32 `json:"topP" validate:"min=0,max=1"`
	FrequencyPenalty float32 `json:"frequencyPenalty" validate:"min=-2,max=2"`
	PresencePenalty  float32 `json:"presencePenalty" validate:"min=-2,max=2"`
}

// DefaultRequestConfig returns the documented generation defaults.
func DefaultRequestConfig() RequestConfig {
	return RequestConfig{
		Temperature: 0.3,
		MaxTokens:   2000,
		TopP:        0.9,
	}
}

// TokenUsage tracks provider token consumption for one analysis.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Cost is the monetary cost reported for one analysis.
type Cost struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// ErrorInfo is populated when an analysis fails.
type ErrorInfo struct {
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
	Details    string `json:"details,omitempty"`
	RetryCount int    `json:"retryCount"`
}

// UserRating is the 1-5 feedback a user leaves on an analysis.
type UserRating struct {
	Accuracy   int    `json:"accuracy,omitempty" validate:"omitempty,min=1,max=5"`
	Usefulness int    `json:"usefulness,omitempty" validate:"omitempty,min=1,max=5"`
	Clarity    int    `json:"clarity,omitempty" validate:"omitempty,min=1,max=5"`
	Overall    int    `json:"overall,omitempty" validate:"omitempty,min=1,max=5"`
	Feedback   string `json:"feedback,omitempty" validate:"omitempty,max=2000"`
}

// DeriveOverall fills Overall with the rounded mean of the individual ratings
// when it was not explicitly supplied.
func (r *UserRating) DeriveOverall() {
	if r.Overall != 0 {
		return
	}
	sum, count := 0, 0
	for _, rating := range []int{r.Accuracy, r.Usefulness, r.Clarity} {
		if rating != 0 {
			sum += rating
			count++
		}
	}
	if count > 0 {
		r.Overall = int(math.Round(float64(sum) / float64(count)))
	}
}

// LegalIssue is one issue found in a structured result.
type LegalIssue struct {
	Issue          string `json:"issue,omitempty"`
	Severity       string `json:"severity,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

// PrecedentRef is one precedent cited in a structured result.
type PrecedentRef struct {
	CaseName       string  `json:"caseName,omitempty"`
	Citation       string  `json:"citation,omitempty"`
	RelevanceScore float64 `json:"relevanceScore,omitempty" validate:"min=0,max=100"`
	Summary        string  `json:"summary,omitempty"`
}

// RiskFactor is one risk in an outcome analysis.
type RiskFactor struct {
	Factor     string `json:"factor,omitempty"`
	Impact     string `json:"impact,omitempty"`
	Mitigation string `json:"mitigation,omitempty"`
}

// CostRange is an estimated cost band.
type CostRange struct {
	Min      float64 `json:"min,omitempty"`
	Max      float64 `json:"max,omitempty"`
	Currency string  `json:"currency,omitempty"`
}

// OutcomeAnalysis is the outcome projection of a structured result.
type OutcomeAnalysis struct {
	SuccessProbability *float64     `json:"successProbability,omitempty" validate:"omitempty,min=0,max=100"`
	RiskFactors        []RiskFactor `json:"riskFactors,omitempty"`
	EstimatedTimeline  string       `json:"estimatedTimeline,omitempty"`
	EstimatedCosts     *CostRange   `json:"estimatedCosts,omitempty"`
}

// Recommendation is one actionable recommendation of a structured result.
type Recommendation struct {
	Category  string     `json:"category,omitempty"`
	Priority  string     `json:"priority,omitempty"`
	Action    string     `json:"action"`
	Rationale string     `json:"rationale,omitempty"`
	Deadline  *time.Time `json:"deadline,omitempty"`
}

// Confidence scores the reliability of a structured result.
type Confidence struct {
	Overall     *float64 `json:"overall,omitempty" validate:"omitempty,min=0,max=100"`
	DataQuality *float64 `json:"dataQuality,omitempty" validate:"omitempty,min=0,max=100"`
	Reasoning   string   `json:"reasoning,omitempty"`
}

// StructuredResult is an optional machine-readable decomposition of the raw
// analysis text.
type StructuredResult struct {
	KeyFindings     []string         `json:"keyFindings,omitempty"`
	LegalIssues     []LegalIssue     `json:"legalIssues,omitempty"`
	Precedents      []PrecedentRef   `json:"precedents,omitempty"`
	OutcomeAnalysis *OutcomeAnalysis `json:"outcomeAnalysis,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Confidence      *Confidence      `json:"confidence,omitempty"`
}

// Analysis represents one AI-generated analysis result tied to exactly one case.
type Analysis struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	CaseID       string `gorm:"type:uuid;not null;index;index:idx_analysis_case_type" json:"caseId" validate:"required"`
	AnalysisType string `gorm:"not null;index;index:idx_analysis_case_type" json:"analysisType" validate:"required"`

	AIProvider string `gorm:"column:ai_provider;not null;index" json:"aiProvider" validate:"required"`
	Model      string `gorm:"not null" json:"model" validate:"required,max=100"`

	RequestConfig RequestConfig `gorm:"serializer:json" json:"requestConfig"`

	PromptUsed string `gorm:"type:text;not null" json:"promptUsed"`
	Result     string `gorm:"type:text" json:"result"`

	StructuredResult *StructuredResult `gorm:"serializer:json" json:"structuredResult,omitempty"`

	TokensUsed     TokenUsage `gorm:"serializer:json" json:"tokensUsed"`
	ProcessingTime int64      `gorm:"not null" json:"processingTime" validate:"min=0"`
	Cost           Cost       `gorm:"serializer:json" json:"cost"`

	Status       string     `gorm:"not null;default:Processing;index" json:"status"`
	QualityScore *float64   `json:"qualityScore,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`

	ErrorInfo  *ErrorInfo  `gorm:"serializer:json" json:"errorInfo,omitempty"`
	UserRating *UserRating `gorm:"serializer:json" json:"userRating,omitempty"`

	Version      string     `gorm:"default:1.0" json:"version"`
	Tags         []string   `gorm:"serializer:json" json:"tags,omitempty"`
	IsBookmarked bool       `gorm:"not null;default:false" json:"isBookmarked"`
	IsArchived   bool       `gorm:"not null;default:false" json:"isArchived"`
	CreatedBy    *string    `json:"createdBy,omitempty" validate:"omitempty,max=100"`
	ReviewedBy   *string    `json:"reviewedBy,omitempty" validate:"omitempty,max=100"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
	Notes        *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// BeforeCreate hook to generate UUID and apply defaults
func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.ApplyDefaults()
	return nil
}

// BeforeSave hook recomputes the derived parts of the record on every write:
// total token count and the overall user rating.
func (a *Analysis) BeforeSave(tx *gorm.DB) error {
	if a.TokensUsed.Prompt > 0 && a.TokensUsed.Completion > 0 {
		a.TokensUsed.Total = a.TokensUsed.Prompt + a.TokensUsed.Completion
	}
	if a.UserRating != nil {
		a.UserRating.DeriveOverall()
	}
	return nil
}

// TableName specifies the table name for Analysis model
func (Analysis) TableName() string {
	return "analyses"
}

// ApplyDefaults fills the defaulted fields of a new analysis.
func (a *Analysis) ApplyDefaults() {
	if a.Status == "" {
		a.Status = AnalysisStatusProcessing
	}
	if a.Version == "" {
		a.Version = "1.0"
	}
	// Each config field is backfilled independently, so a partial config
	// still gets the documented defaults. A zero temperature or topP is
	// treated as unset.
	defaults := DefaultRequestConfig()
	if a.RequestConfig.Temperature == 0 {
		a.RequestConfig.Temperature = defaults.Temperature
	}
	if a.RequestConfig.MaxTokens == 0 {
		a.RequestConfig.MaxTokens = defaults.MaxTokens
	}
	if a.RequestConfig.TopP == 0 {
		a.RequestConfig.TopP = defaults.TopP
	}
	if a.Cost.Currency == "" {
		a.Cost.Currency = "USD"
	}
}

// IsTerminal reports whether the status is a terminal state.
func (a *Analysis) IsTerminal() bool {
	switch a.Status {
	case AnalysisStatusCompleted, AnalysisStatusFailed, AnalysisStatusCancelled:
		return true
	}
	return false
}

// CalculateQualityScore computes the 0-100 composite quality score as the
// mean of the factors that are actually present: user rating (40 points),
// structured-result completeness (30), processing efficiency (20) and result
// length adequacy (10). Returns nil when no factor is computable.
func (a *Analysis) CalculateQualityScore() *float64 {
	score := 0.0
	factors := 0

	// Factor 1: User rating (40% weight)
	if a.UserRating != nil && a.UserRating.Overall > 0 {
		score += float64(a.UserRating.Overall) / 5 * 40
		factors++
	}

	// Factor 2: Structured result completeness (30% weight)
	if sr := a.StructuredResult; sr != nil {
		completeness := 0.0
		if len(sr.KeyFindings) > 0 {
			completeness += 25
		}
		if len(sr.Recommendations) > 0 {
			completeness += 25
		}
		if sr.Confidence != nil && sr.Confidence.Overall != nil {
			completeness += 25
		}
		if sr.OutcomeAnalysis != nil && sr.OutcomeAnalysis.SuccessProbability != nil {
			completeness += 25
		}
		score += completeness / 100 * 30
		factors++
	}

	// Factor 3: Processing efficiency, tokens per second capped at 100 (20% weight)
	if a.ProcessingTime > 0 && a.TokensUsed.Total > 0 {
		efficiency := math.Min(float64(a.TokensUsed.Total)/float64(a.ProcessingTime)*1000, 100)
		score += efficiency / 100 * 20
		factors++
	}

	// Factor 4: Result length adequacy against a 2000-char ideal (10% weight)
	if a.Result != "" {
		const idealLength = 2000
		lengthScore := math.Min(float64(len(a.Result))/idealLength, 1) * 100
		score += lengthScore / 100 * 10
		factors++
	}

	if factors == 0 {
		a.QualityScore = nil
		return nil
	}

	quality := math.Round(score/float64(factors)*100) / 100
	a.QualityScore = &quality
	return a.QualityScore
}

// Efficiency returns tokens per second, or nil when not computable.
func (a *Analysis) Efficiency() *float64 {
	if a.ProcessingTime == 0 || a.TokensUsed.Total == 0 {
		return nil
	}
	eff := math.Round(float64(a.TokensUsed.Total) / float64(a.ProcessingTime) * 1000)
	return &eff
}

// CostPerToken returns the unit cost, or nil when not computable.
func (a *Analysis) CostPerToken() *float64 {
	if a.Cost.Amount == 0 || a.TokensUsed.Total == 0 {
		return nil
	}
	cpt := math.Round(a.Cost.Amount/float64(a.TokensUsed.Total)*100000) / 100000
	return &cpt
}

// AnalysisSummary is the compact projection used in listings.
type AnalysisSummary struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	Status         string    `json:"status"`
	QualityScore   *float64  `json:"qualityScore,omitempty"`
	ProcessingTime int64     `json:"processingTime"`
	TokensUsed     int       `json:"tokensUsed"`
	Cost           float64   `json:"cost"`
	Rating         *int      `json:"rating,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Summarize returns the compact projection of the analysis.
func (a *Analysis) Summarize() AnalysisSummary {
	summary := AnalysisSummary{
		ID:             a.ID,
		Type:           a.AnalysisType,
		Provider:       a.AIProvider,
		Model:          a.Model,
		Status:         a.Status,
		QualityScore:   a.QualityScore,
		ProcessingTime: a.ProcessingTime,
		TokensUsed:     a.TokensUsed.Total,
		Cost:           a.Cost.Amount,
		CreatedAt:      a.CreatedAt,
	}
	if a.UserRating != nil && a.UserRating.Overall > 0 {
		rating := a.UserRating.Overall
		summary.Rating = &rating
	}
	return summary
}

// ValidAnalysisTypes returns the supported analysis type values.
func ValidAnalysisTypes() []string {
	return []string{
		AnalysisTypeSummary, AnalysisTypeLegalIssues, AnalysisTypePrecedents,
		AnalysisTypeOutcomePrediction, AnalysisTypeRiskAssessment,
		AnalysisTypeStrategyRecommendation, AnalysisTypeDocumentAnalysis,
		AnalysisTypeSettlementEvaluation, AnalysisTypeComplianceCheck,
		AnalysisTypeEvidenceEvaluation, AnalysisTypeWitnessAnalysis,
		AnalysisTypeTimelineAnalysis,
	}
}

// IsValidAnalysisType checks if the analysis type is valid
func IsValidAnalysisType(analysisType string) bool {
	return contains(ValidAnalysisTypes(), analysisType)
}

// ValidProviders returns the supported AI provider values.
func ValidProviders() []string {
	return []string{ProviderOpenAI, ProviderGemini, ProviderGroq, ProviderClaude, ProviderCustom}
}

// IsValidProvider checks if the AI provider is valid
func IsValidProvider(provider string) bool {
	return contains(ValidProviders(), provider)
}

// IsValidAnalysisStatus checks if the analysis status is valid
func IsValidAnalysisStatus(status string) bool {
	return contains([]string{
		AnalysisStatusProcessing, AnalysisStatusCompleted, AnalysisStatusFailed,
		AnalysisStatusCancelled, AnalysisStatusQueued,
	}, status)
}
