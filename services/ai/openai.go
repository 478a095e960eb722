package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"legal_case_ai_go/models"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// defaultModels are used when a request carries no explicit model.
var defaultModels = map[string]string{
	models.ProviderOpenAI: "gpt-4",
	models.ProviderGroq:   "llama3-8b-8192",
	models.ProviderGemini: "gemini-pro",
}

// DefaultModel returns the model a provider falls back to when a request
// names none.
func DefaultModel(provider string) string {
	if model, ok := defaultModels[provider]; ok {
		return model
	}
	return "unknown"
}

// ChatProvider serves OpenAI-compatible chat completion APIs. Groq exposes
// the same wire protocol, so both providers share this implementation with
// different base URLs.
type ChatProvider struct {
	name   string
	client *openai.Client
}

// NewOpenAIProvider builds a gateway against the OpenAI API.
func NewOpenAIProvider(apiKey string) *ChatProvider {
	return &ChatProvider{
		name:   models.ProviderOpenAI,
		client: openai.NewClient(apiKey),
	}
}

// NewGroqProvider builds a gateway against the Groq API using its
// OpenAI-compatible endpoint.
func NewGroqProvider(apiKey string) *ChatProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	return &ChatProvider{
		name:   models.ProviderGroq,
		client: openai.NewClientWithConfig(cfg),
	}
}

// Generate sends one chat completion request and returns the trimmed text
// with token accounting.
func (p *ChatProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = defaultModels[p.name]
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: req.CaseContext},
		},
		MaxTokens:   req.Config.MaxTokens,
		Temperature: req.Config.Temperature,
		TopP:        req.Config.TopP,
	})
	if err != nil {
		return nil, p.classifyError(err)
	}
	elapsed := time.Since(start).Milliseconds()

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{
			Provider: p.name,
			Kind:     ErrorKindUnavailable,
			Message:  "empty completion response",
		}
	}

	zap.S().Debugw("chat completion finished",
		"provider", p.name,
		"model", resp.Model,
		"total_tokens", resp.Usage.TotalTokens,
		"processing_ms", elapsed,
	)

	return &Result{
		Text:      strings.TrimSpace(resp.Choices[0].Message.Content),
		ModelUsed: resp.Model,
		Tokens: models.TokenUsage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
		ProcessingTime: elapsed,
	}, nil
}

func (p *ChatProvider) classifyError(err error) error {
	perr := &ProviderError{Provider: p.name, Err: err, Message: err.Error()}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized:
			perr.Kind = ErrorKindAuth
			perr.Message = "invalid API key"
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			perr.Kind = ErrorKindQuota
			perr.Message = "rate limit or quota exceeded"
		case apiErr.HTTPStatusCode == http.StatusBadRequest:
			perr.Kind = ErrorKindInvalidRequest
			perr.Message = "invalid request to provider"
		default:
			perr.Kind = ErrorKindUnavailable
			perr.Message = "provider service unavailable"
		}
		return perr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		perr.Kind = ErrorKindTimeout
		perr.Message = "request timed out"
		return perr
	}

	perr.Kind = ErrorKindUnavailable
	return perr
}
