package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveOverall(t *testing.T) {
	r := &UserRating{Accuracy: 5, Usefulness: 4, Clarity: 4}
	r.DeriveOverall()
	assert.Equal(t, 4, r.Overall) // round(13/3)

	// An explicit overall is never recomputed.
	r2 := &UserRating{Accuracy: 1, Usefulness: 1, Clarity: 1, Overall: 5}
	r2.DeriveOverall()
	assert.Equal(t, 5, r2.Overall)

	// Only the ratings actually given count.
	r3 := &UserRating{Accuracy: 5}
	r3.DeriveOverall()
	assert.Equal(t, 5, r3.Overall)

	r4 := &UserRating{Feedback: "no scores"}
	r4.DeriveOverall()
	assert.Equal(t, 0, r4.Overall)
}

func TestCalculateQualityScoreNoFactors(t *testing.T) {
	a := &Analysis{}
	assert.Nil(t, a.CalculateQualityScore())
	assert.Nil(t, a.QualityScore)
}

func TestCalculateQualityScoreSingleFactor(t *testing.T) {
	a := &Analysis{UserRating: &UserRating{Overall: 4}}
	score := a.CalculateQualityScore()
	assert.NotNil(t, score)
	// 4/5 * 40 = 32 points over one factor.
	assert.Equal(t, 32.0, *score)
}

func TestCalculateQualityScoreMultipleFactors(t *testing.T) {
	a := &Analysis{
		UserRating:     &UserRating{Overall: 4},
		Result:         strings.Repeat("x", 1000),
		TokensUsed:     TokenUsage{Total: 150},
		ProcessingTime: 1500,
	}
	score := a.CalculateQualityScore()
	assert.NotNil(t, score)
	// rating 32, efficiency 150/1500*1000=100 capped -> 20, length 1000/2000 -> 5.
	// (32 + 20 + 5) / 3 = 19.
	assert.Equal(t, 19.0, *score)
	assert.GreaterOrEqual(t, *score, 0.0)
	assert.LessOrEqual(t, *score, 100.0)

	// Recomputing without input changes is stable.
	again := a.CalculateQualityScore()
	assert.Equal(t, *score, *again)
}

func TestCalculateQualityScoreStructuredCompleteness(t *testing.T) {
	confidence := 80.0
	probability := 60.0
	a := &Analysis{
		StructuredResult: &StructuredResult{
			KeyFindings:     []string{"finding"},
			Recommendations: []Recommendation{{Action: "appeal"}},
			Confidence:      &Confidence{Overall: &confidence},
			OutcomeAnalysis: &OutcomeAnalysis{SuccessProbability: &probability},
		},
	}
	score := a.CalculateQualityScore()
	assert.NotNil(t, score)
	// Fully complete structured result earns all 30 points of its factor.
	assert.Equal(t, 30.0, *score)
}

func TestAnalysisDefaults(t *testing.T) {
	a := &Analysis{}
	a.ApplyDefaults()

	assert.Equal(t, AnalysisStatusProcessing, a.Status)
	assert.Equal(t, "1.0", a.Version)
	assert.Equal(t, DefaultRequestConfig(), a.RequestConfig)
	assert.Equal(t, "USD", a.Cost.Currency)

	// A partially supplied config keeps its values but fills the rest.
	b := &Analysis{RequestConfig: RequestConfig{Temperature: 0.7}}
	b.ApplyDefaults()
	assert.InDelta(t, 0.7, float64(b.RequestConfig.Temperature), 1e-6)
	assert.Equal(t, 2000, b.RequestConfig.MaxTokens)
	assert.InDelta(t, 0.9, float64(b.RequestConfig.TopP), 1e-6)

	c := &Analysis{RequestConfig: RequestConfig{MaxTokens: 500}}
	c.ApplyDefaults()
	assert.Equal(t, 500, c.RequestConfig.MaxTokens)
	assert.InDelta(t, 0.3, float64(c.RequestConfig.Temperature), 1e-6)
	assert.InDelta(t, 0.9, float64(c.RequestConfig.TopP), 1e-6)
}

func TestIsTerminal(t *testing.T) {
	for status, terminal := range map[string]bool{
		AnalysisStatusProcessing: false,
		AnalysisStatusQueued:     false,
		AnalysisStatusCompleted:  true,
		AnalysisStatusFailed:     true,
		AnalysisStatusCancelled:  true,
	} {
		a := &Analysis{Status: status}
		assert.Equal(t, terminal, a.IsTerminal(), status)
	}
}

func TestEfficiencyAndCostPerToken(t *testing.T) {
	a := &Analysis{
		TokensUsed:     TokenUsage{Total: 300},
		ProcessingTime: 1500,
		Cost:           Cost{Amount: 0.06, Currency: "USD"},
	}
	eff := a.Efficiency()
	assert.NotNil(t, eff)
	assert.Equal(t, 200.0, *eff)

	cpt := a.CostPerToken()
	assert.NotNil(t, cpt)
	assert.Equal(t, 0.0002, *cpt)

	empty := &Analysis{}
	assert.Nil(t, empty.Efficiency())
	assert.Nil(t, empty.CostPerToken())
}

func TestSummarize(t *testing.T) {
	a := &Analysis{
		ID:           "a1",
		AnalysisType: AnalysisTypeSummary,
		AIProvider:   ProviderGroq,
		Model:        "llama3-8b-8192",
		Status:       AnalysisStatusCompleted,
		TokensUsed:   TokenUsage{Total: 150},
		Cost:         Cost{Amount: 0.01},
		UserRating:   &UserRating{Overall: 4},
	}
	s := a.Summarize()
	assert.Equal(t, "a1", s.ID)
	assert.Equal(t, ProviderGroq, s.Provider)
	assert.Equal(t, 150, s.TokensUsed)
	assert.NotNil(t, s.Rating)
	assert.Equal(t, 4, *s.Rating)

	a.UserRating = nil
	assert.Nil(t, a.Summarize().Rating)
}
