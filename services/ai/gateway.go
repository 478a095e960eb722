// Package ai contains the provider gateway that turns a prepared case
// context into raw analysis text. Providers are interchangeable behind the
// Gateway interface so the analysis pipeline never touches vendor SDKs
// directly.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"legal_case_ai_go/models"
)

// Request is a single analysis generation request.
type Request struct {
	CaseContext  string
	AnalysisType string
	Provider     string
	Model        string
	Config       models.RequestConfig
}

// Result is the raw provider output before it becomes an Analysis record.
type Result struct {
	Text           string
	ModelUsed      string
	Tokens         models.TokenUsage
	ProcessingTime int64
}

// Gateway generates analysis text for a request.
type Gateway interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// ErrUnsupportedProvider is returned when a provider is valid on the data
// model but has no gateway implementation.
var ErrUnsupportedProvider = errors.New("unsupported ai provider")

// ErrorKind classifies provider failures for HTTP mapping and retry policy.
type ErrorKind string

const (
	ErrorKindAuth           ErrorKind = "authentication"
	ErrorKindQuota          ErrorKind = "quota"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
	ErrorKindUnavailable    ErrorKind = "unavailable"
)

// ProviderError is a classified failure from an AI provider call.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error (%s): %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient.
func (e *ProviderError) Retryable() bool {
	return e.Kind == ErrorKindQuota || e.Kind == ErrorKindTimeout || e.Kind == ErrorKindUnavailable
}

// Router dispatches requests to the configured provider gateways. A provider
// without a configured gateway yields ErrUnsupportedProvider rather than
// silently falling through to another vendor.
type Router struct {
	providers map[string]Gateway
	timeout   time.Duration
}

// NewRouter builds a router over the given provider gateways keyed by
// provider name.
func NewRouter(timeout time.Duration, providers map[string]Gateway) *Router {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Router{providers: providers, timeout: timeout}
}

// Generate routes the request to its provider with the configured timeout
// applied. Every known provider value is handled explicitly.
func (r *Router) Generate(ctx context.Context, req Request) (*Result, error) {
	switch req.Provider {
	case models.ProviderOpenAI, models.ProviderGroq, models.ProviderGemini, models.ProviderClaude, models.ProviderCustom:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, req.Provider)
	}

	gw, ok := r.providers[req.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, req.Provider)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := gw.Generate(ctx, req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &ProviderError{
				Provider: req.Provider,
				Kind:     ErrorKindTimeout,
				Message:  "request timed out",
				Err:      err,
			}
		}
		return nil, err
	}
	if result.ProcessingTime == 0 {
		result.ProcessingTime = time.Since(start).Milliseconds()
	}
	return result, nil
}
