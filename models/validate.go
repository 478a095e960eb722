package models

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report violations under their JSON names so API clients can match them
	// to the fields they submitted.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// caseNumberPatterns: the generated XX-YYYY-NNN shape, or a free-form
// PREFIX-NNN... supplied by the user.
var (
	generatedCaseNumberPattern = regexp.MustCompile(`^[A-Z]{2}-\d{4}-\d{3}$`)
	customCaseNumberPattern    = regexp.MustCompile(`^[A-Za-z0-9]{2,10}-\d{3,}$`)
)

// IsValidCaseNumber checks a case number against the accepted shapes.
func IsValidCaseNumber(number string) bool {
	return generatedCaseNumberPattern.MatchString(number) || customCaseNumberPattern.MatchString(number)
}

// ValidCurrencies returns the supported currency codes.
func ValidCurrencies() []string {
	return []string{"USD", "EUR", "GBP", "INR", "CAD", "AUD", "JPY", "CHF"}
}

// IsValidCurrency checks if the currency code is supported
func IsValidCurrency(currency string) bool {
	return contains(ValidCurrencies(), currency)
}

// ModelAllowList maps a provider to the model names it accepts. The custom
// provider accepts anything.
type ModelAllowList map[string][]string

// DefaultModelAllowList returns the provider model table shipped with the
// application.
func DefaultModelAllowList() ModelAllowList {
	return ModelAllowList{
		ProviderOpenAI: {"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo", "gpt-4o"},
		ProviderGemini: {"gemini-pro", "gemini-pro-vision", "gemini-1.5-pro"},
		ProviderGroq:   {"llama3-8b-8192", "llama3-70b-8192", "mixtral-8x7b-32768", "gemma-7b-it"},
		ProviderClaude: {"claude-3-sonnet", "claude-3-opus", "claude-3-haiku"},
	}
}

// Allows reports whether the model is acceptable for the provider.
func (m ModelAllowList) Allows(provider, model string) bool {
	if provider == ProviderCustom {
		return true
	}
	return contains(m[provider], model)
}

// CaseValidationOptions tweaks which cross-field checks run. The hearing date
// check only applies at the time the date is entered.
type CaseValidationOptions struct {
	CheckHearingDate bool
	Now              time.Time
}

// ValidateCase checks every field constraint on a case and returns a
// ValidationError enumerating all violations, or nil.
func ValidateCase(c *Case, opts CaseValidationOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	verr := &ValidationError{}
	collectTagViolations(verr, validate.Struct(c))

	if c.CaseType != "" && !IsValidCaseType(c.CaseType) {
		verr.Add("caseType", "must be one of: "+strings.Join(ValidCaseTypes(), ", "))
	}
	if c.Status != "" && !IsValidCaseStatus(c.Status) {
		verr.Add("status", "must be one of: "+strings.Join(ValidCaseStatuses(), ", "))
	}
	if c.Priority != "" && !IsValidPriority(c.Priority) {
		verr.Add("priority", "must be one of: "+strings.Join(ValidPriorities(), ", "))
	}
	if c.AccessLevel != "" && !IsValidAccessLevel(c.AccessLevel) {
		verr.Add("accessLevel", "invalid access level")
	}
	if c.Currency != "" && !IsValidCurrency(c.Currency) {
		verr.Add("currency", "must be one of: "+strings.Join(ValidCurrencies(), ", "))
	}
	if c.CaseNumber != nil && *c.CaseNumber != "" && !IsValidCaseNumber(*c.CaseNumber) {
		verr.Add("caseNumber", "must match XX-YYYY-NNN or PREFIX-NNN")
	}
	if c.DateOfFiling != nil && c.DateOfFiling.After(now) {
		verr.Add("dateOfFiling", "cannot be in the future")
	}
	if opts.CheckHearingDate && c.DateOfHearing != nil && c.DateOfHearing.Before(now) {
		verr.Add("dateOfHearing", "cannot be in the past")
	}
	if c.Outcome != nil && c.Outcome.Result != "" && !IsValidOutcomeResult(c.Outcome.Result) {
		verr.Add("outcome.result", "invalid outcome result")
	}
	if c.Outcome != nil && c.Outcome.AwardAmount != nil && *c.Outcome.AwardAmount < 0 {
		verr.Add("outcome.awardAmount", "cannot be negative")
	}
	for i, event := range c.Timeline {
		if strings.TrimSpace(event.Event) == "" {
			verr.Add(fmt.Sprintf("timeline[%d].event", i), "is required")
		}
	}
	for i, doc := range c.Documents {
		if strings.TrimSpace(doc.Name) == "" {
			verr.Add(fmt.Sprintf("documents[%d].name", i), "is required")
		}
	}

	return verr.ErrOrNil()
}

// ValidateAnalysis checks every field constraint on an analysis. The provider
// model allow-list is passed in explicitly so it can be reconfigured without
// touching validation logic.
func ValidateAnalysis(a *Analysis, allowList ModelAllowList) error {
	verr := &ValidationError{}
	collectTagViolations(verr, validate.Struct(a))

	if a.AnalysisType != "" && !IsValidAnalysisType(a.AnalysisType) {
		verr.Add("analysisType", "must be one of: "+strings.Join(ValidAnalysisTypes(), ", "))
	}
	if a.AIProvider != "" && !IsValidProvider(a.AIProvider) {
		verr.Add("aiProvider", "must be one of: "+strings.Join(ValidProviders(), ", "))
	}
	if a.AIProvider != "" && a.Model != "" && IsValidProvider(a.AIProvider) && !allowList.Allows(a.AIProvider, a.Model) {
		verr.Add("model", fmt.Sprintf("%q is not a valid model for provider %q", a.Model, a.AIProvider))
	}
	if a.Status != "" && !IsValidAnalysisStatus(a.Status) {
		verr.Add("status", "invalid analysis status")
	}
	if a.Cost.Amount < 0 {
		verr.Add("cost.amount", "cannot be negative")
	}
	if a.Cost.Currency != "" && !IsValidCurrency(a.Cost.Currency) {
		verr.Add("cost.currency", "must be one of: "+strings.Join(ValidCurrencies(), ", "))
	}
	if a.TokensUsed.Prompt < 0 || a.TokensUsed.Completion < 0 || a.TokensUsed.Total < 0 {
		verr.Add("tokensUsed", "token counts cannot be negative")
	}

	// Prompt and result lengths are checked here rather than by struct tags:
	// only a completed analysis must carry a result. Failed and in-flight
	// records persist without one.
	if promptLen := utf8.RuneCountInString(a.PromptUsed); promptLen < 10 || promptLen > 20000 {
		verr.Add("promptUsed", "must be between 10 and 20,000 characters")
	}
	resultLen := utf8.RuneCountInString(a.Result)
	if a.Status == AnalysisStatusCompleted && resultLen < 1 {
		verr.Add("result", "is required for a completed analysis")
	}
	if resultLen > 100000 {
		verr.Add("result", "cannot exceed 100,000 characters")
	}
	if a.QualityScore != nil && (*a.QualityScore < 0 || *a.QualityScore > 100) {
		verr.Add("qualityScore", "must be between 0 and 100")
	}

	return verr.ErrOrNil()
}

// collectTagViolations converts validator tag failures into field errors.
func collectTagViolations(verr *ValidationError, err error) {
	if err == nil {
		return
	}
	tagErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.Add("", err.Error())
		return
	}
	for _, fe := range tagErrors {
		verr.Add(fieldPath(fe), tagMessage(fe))
	}
}

// fieldPath strips the root struct name from the validator namespace,
// yielding e.g. "requestConfig.temperature".
func fieldPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}
	return path
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("cannot exceed %s characters", fe.Param())
		}
		return fmt.Sprintf("cannot exceed %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
