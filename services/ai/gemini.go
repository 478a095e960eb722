package ai

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"legal_case_ai_go/models"
)

// GeminiProvider serves Google Gemini models through langchaingo.
type GeminiProvider struct {
	llm *googleai.GoogleAI
}

// NewGeminiProvider builds a gateway against the Gemini API.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey))
	if err != nil {
		return nil, &ProviderError{
			Provider: models.ProviderGemini,
			Kind:     ErrorKindUnavailable,
			Message:  "failed to initialize gemini client",
			Err:      err,
		}
	}
	return &GeminiProvider{llm: llm}, nil
}

// Generate sends one content generation request to Gemini.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = defaultModels[models.ProviderGemini]
	}

	start := time.Now()
	resp, err := p.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, SystemMessage),
			llms.TextParts(llms.ChatMessageTypeHuman, req.CaseContext),
		},
		llms.WithModel(model),
		llms.WithTemperature(float64(req.Config.Temperature)),
		llms.WithMaxTokens(req.Config.MaxTokens),
		llms.WithTopP(float64(req.Config.TopP)),
	)
	if err != nil {
		return nil, p.classifyError(err)
	}
	elapsed := time.Since(start).Milliseconds()

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{
			Provider: models.ProviderGemini,
			Kind:     ErrorKindUnavailable,
			Message:  "empty generation response",
		}
	}

	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Content)
	tokens := models.TokenUsage{
		Prompt:     generationInfoInt(choice.GenerationInfo, "input_tokens"),
		Completion: generationInfoInt(choice.GenerationInfo, "output_tokens"),
	}
	if tokens.Completion == 0 {
		// Gemini does not always report usage; approximate from length.
		tokens.Completion = utf8.RuneCountInString(text) / 4
	}
	if tokens.Prompt == 0 {
		tokens.Prompt = utf8.RuneCountInString(req.CaseContext) / 4
	}
	tokens.Total = tokens.Prompt + tokens.Completion

	return &Result{
		Text:           text,
		ModelUsed:      model,
		Tokens:         tokens,
		ProcessingTime: elapsed,
	}, nil
}

func (p *GeminiProvider) classifyError(err error) error {
	perr := &ProviderError{
		Provider: models.ProviderGemini,
		Err:      err,
		Message:  err.Error(),
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"), strings.Contains(msg, "unauthenticated"), strings.Contains(msg, "permission"):
		perr.Kind = ErrorKindAuth
		perr.Message = "invalid API key"
	case strings.Contains(msg, "quota"), strings.Contains(msg, "resource exhausted"), strings.Contains(msg, "rate limit"):
		perr.Kind = ErrorKindQuota
		perr.Message = "rate limit or quota exceeded"
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		perr.Kind = ErrorKindTimeout
		perr.Message = "request timed out"
	case strings.Contains(msg, "invalid"):
		perr.Kind = ErrorKindInvalidRequest
		perr.Message = "invalid request to provider"
	default:
		perr.Kind = ErrorKindUnavailable
		perr.Message = "provider service unavailable"
	}
	return perr
}

func generationInfoInt(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
