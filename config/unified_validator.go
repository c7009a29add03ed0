package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// UnifiedConfigValidator runs per-field validation rules over a Config.
type UnifiedConfigValidator struct {
	mu         sync.RWMutex
	validators map[string]ValidatorFunc
	rules      map[string][]ValidationRule
}

type ValidatorFunc func(value any) *ValidationResult

type ValidationRule struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Validator   ValidatorFunc `json:"-"`
	Required    bool          `json:"required"`
	// When returns false the rule is skipped for this config.
	When func(c *Config) bool `json:"-"`
}

type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type ValidationReport struct {
	Valid     bool                         `json:"valid"`
	Results   map[string]*ValidationResult `json:"results"`
	Summary   ValidationSummary            `json:"summary"`
	Timestamp time.Time                    `json:"timestamp"`
}

type ValidationSummary struct {
	TotalFields   int `json:"total_fields"`
	ValidFields   int `json:"valid_fields"`
	InvalidFields int `json:"invalid_fields"`
	TotalErrors   int `json:"total_errors"`
	TotalWarnings int `json:"total_warnings"`
}

func NewUnifiedConfigValidator() *UnifiedConfigValidator {
	v := &UnifiedConfigValidator{
		validators: make(map[string]ValidatorFunc),
		rules:      make(map[string][]ValidationRule),
	}
	v.registerBuiltinValidators()
	v.defineValidationRules()
	return v
}

func ok() *ValidationResult { return &ValidationResult{Valid: true} }

func fail(msg string) *ValidationResult {
	return &ValidationResult{Valid: false, Errors: []string{msg}}
}

func warn(msg string) *ValidationResult {
	return &ValidationResult{Valid: true, Warnings: []string{msg}}
}

func (v *UnifiedConfigValidator) registerBuiltinValidators() {
	v.validators["api_key"] = func(value any) *ValidationResult {
		s, _ := value.(string)
		s = strings.TrimSpace(s)
		if s == "" {
			return warn("not set: similarity search and embedding saves will fail")
		}
		lower := strings.ToLower(s)
		for _, placeholder := range []string{"your-api-key", "placeholder", "sk-..."} {
			if strings.Contains(lower, placeholder) {
				return fail("API key contains placeholder text")
			}
		}
		return ok()
	}

	v.validators["url"] = func(value any) *ValidationResult {
		s, _ := value.(string)
		u, err := url.Parse(strings.TrimSpace(s))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fail(fmt.Sprintf("invalid URL %q", s))
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fail(fmt.Sprintf("unsupported URL scheme %q", u.Scheme))
		}
		return ok()
	}

	v.validators["database_url"] = func(value any) *ValidationResult {
		s, _ := value.(string)
		u, err := url.Parse(strings.TrimSpace(s))
		if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			return fail("database URL must use the postgres:// scheme")
		}
		return ok()
	}

	v.validators["store"] = func(value any) *ValidationResult {
		switch value {
		case StoreMemory, StorePgVector, StoreMilvus, StoreSQLite:
			return ok()
		}
		return fail(fmt.Sprintf("unknown store %q (memory, pgvector, milvus, sqlite)", value))
	}

	v.validators["positive_int"] = func(value any) *ValidationResult {
		n, _ := value.(int)
		if n <= 0 {
			return fail(fmt.Sprintf("must be positive, got %d", n))
		}
		return ok()
	}

	v.validators["unit_interval"] = func(value any) *ValidationResult {
		f, _ := value.(float64)
		if f < 0 || f > 1 {
			return fail(fmt.Sprintf("must be within [0,1], got %.2f", f))
		}
		return ok()
	}

	v.validators["non_negative_duration"] = func(value any) *ValidationResult {
		d, _ := value.(time.Duration)
		if d < 0 {
			return fail("must not be negative")
		}
		return ok()
	}
}

func (v *UnifiedConfigValidator) defineValidationRules() {
	rule := func(name, validator string) ValidationRule {
		return ValidationRule{Name: name, Validator: v.validators[validator], Required: true}
	}

	v.rules["api_key"] = []ValidationRule{rule("api_key", "api_key")}
	v.rules["youtube_api_key"] = []ValidationRule{rule("api_key", "api_key")}
	v.rules["base_url"] = []ValidationRule{rule("url_format", "url")}
	v.rules["youtube_api_url"] = []ValidationRule{rule("url_format", "url")}
	v.rules["api_base_url"] = []ValidationRule{rule("url_format", "url")}
	v.rules["store"] = []ValidationRule{rule("store_kind", "store")}
	v.rules["postgres_url"] = []ValidationRule{{
		Name:      "database_url_format",
		Validator: v.validators["database_url"],
		When:      func(c *Config) bool { return c.Store == StorePgVector },
	}}
	v.rules["embedding_dim"] = []ValidationRule{rule("positive", "positive_int")}
	v.rules["chunk_size"] = []ValidationRule{rule("positive", "positive_int")}
	v.rules["preview_chunk_size"] = []ValidationRule{rule("positive", "positive_int")}
	v.rules["channel_max_new_videos"] = []ValidationRule{rule("positive", "positive_int")}
	v.rules["channel_max_pages"] = []ValidationRule{rule("positive", "positive_int")}
	v.rules["semantic_threshold"] = []ValidationRule{rule("threshold", "unit_interval")}
	v.rules["cooking_threshold"] = []ValidationRule{rule("threshold", "unit_interval")}
	v.rules["embed_interval"] = []ValidationRule{rule("interval", "non_negative_duration")}
}

// ValidateConfig validates every known field of c.
func (v *UnifiedConfigValidator) ValidateConfig(c *Config) *ValidationReport {
	v.mu.RLock()
	defer v.mu.RUnlock()

	report := &ValidationReport{
		Valid:     true,
		Results:   make(map[string]*ValidationResult),
		Timestamp: time.Now(),
	}

	fields := map[string]any{
		"api_key":                c.APIKey,
		"youtube_api_key":        c.YouTubeAPIKey,
		"base_url":               c.BaseURL,
		"youtube_api_url":        c.YouTubeAPIURL,
		"api_base_url":           c.APIBaseURL,
		"store":                  c.Store,
		"postgres_url":           c.PostgresURL,
		"embedding_dim":          c.EmbeddingDim,
		"chunk_size":             c.ChunkSize,
		"preview_chunk_size":     c.PreviewChunkSize,
		"channel_max_new_videos": c.ChannelMaxNewVideos,
		"channel_max_pages":      c.ChannelMaxPages,
		"semantic_threshold":     c.SemanticThreshold,
		"cooking_threshold":      c.CookingThreshold,
		"embed_interval":         c.EmbedInterval,
	}

	for name, value := range fields {
		result := v.validateField(name, value, c)
		report.Results[name] = result
		if !result.Valid {
			report.Valid = false
		}
	}
	report.Summary = calculateSummary(report.Results)

	slog.Debug("config validated", slog.Bool("valid", report.Valid), slog.Int("errors", report.Summary.TotalErrors))
	return report
}

func (v *UnifiedConfigValidator) validateField(name string, value any, c *Config) *ValidationResult {
	combined := ok()
	for _, rule := range v.rules[name] {
		if rule.When != nil && !rule.When(c) {
			continue
		}
		r := rule.Validator(value)
		combined.Valid = combined.Valid && r.Valid
		combined.Errors = append(combined.Errors, r.Errors...)
		combined.Warnings = append(combined.Warnings, r.Warnings...)
	}
	return combined
}

func calculateSummary(results map[string]*ValidationResult) ValidationSummary {
	s := ValidationSummary{TotalFields: len(results)}
	for _, r := range results {
		if r.Valid {
			s.ValidFields++
		} else {
			s.InvalidFields++
		}
		s.TotalErrors += len(r.Errors)
		s.TotalWarnings += len(r.Warnings)
	}
	return s
}

// AddValidationRule appends a custom rule for fieldName.
func (v *UnifiedConfigValidator) AddValidationRule(fieldName string, rule ValidationRule) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules[fieldName] = append(v.rules[fieldName], rule)
}

// GetFormattedReport renders the report for terminal output.
func (r *ValidationReport) GetFormattedReport() string {
	var b strings.Builder
	b.WriteString("\n=== Configuration report ===\n")
	status := "OK"
	if !r.Valid {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "status: %s (%d/%d fields valid, %d errors, %d warnings)\n",
		status, r.Summary.ValidFields, r.Summary.TotalFields, r.Summary.TotalErrors, r.Summary.TotalWarnings)

	names := make([]string, 0, len(r.Results))
	for name := range r.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res := r.Results[name]
		if len(res.Errors) == 0 && len(res.Warnings) == 0 {
			continue
		}
		mark := "+"
		if !res.Valid {
			mark = "x"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, name)
		for _, e := range res.Errors {
			fmt.Fprintf(&b, "  error: %s\n", e)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "  warning: %s\n", w)
		}
	}
	b.WriteString("============================\n")
	return b.String()
}

var (
	globalValidator     *UnifiedConfigValidator
	globalValidatorOnce sync.Once
)

func GetGlobalValidator() *UnifiedConfigValidator {
	globalValidatorOnce.Do(func() {
		globalValidator = NewUnifiedConfigValidator()
	})
	return globalValidator
}

func ValidateConfigWithGlobalValidator(c *Config) *ValidationReport {
	return GetGlobalValidator().ValidateConfig(c)
}
