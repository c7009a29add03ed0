package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigEnvOverrides(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("STORE", " SQLite ")
	t.Setenv("CHUNK_SIZE", "120")
	t.Setenv("SEMANTIC_THRESHOLD", "0.55")
	t.Setenv("EMBED_INTERVAL", "250ms")
	t.Setenv("PORT", "9090")
	t.Setenv("API_BASE_URL", "http://localhost:9090/")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, 120, cfg.ChunkSize)
	assert.InDelta(t, 0.55, cfg.SemanticThreshold, 1e-9)
	assert.Equal(t, 250*time.Millisecond, cfg.EmbedInterval)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://localhost:9090", cfg.APIBaseURL)
	assert.True(t, cfg.HasValidAPI())

	again, err := LoadConfig()
	require.NoError(t, err)
	assert.Same(t, cfg, again)
}

func TestLoadConfigDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("API_KEY", "")
	t.Setenv("STORE", "")
	t.Setenv("PORT", "")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("CHUNK_SIZE", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 300, cfg.ChunkSize)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.APIBaseURL)
	assert.False(t, cfg.HasValidAPI())
	assert.Error(t, cfg.Validate())
}

func TestValidatorReport(t *testing.T) {
	cfg := Defaults()
	cfg.APIBaseURL = "http://127.0.0.1:8080"
	cfg.APIKey = "sk-real"
	cfg.YouTubeAPIKey = "AIza-real"

	report := NewUnifiedConfigValidator().ValidateConfig(cfg)
	assert.True(t, report.Valid, report.GetFormattedReport())
	assert.Zero(t, report.Summary.TotalErrors)

	cfg.Store = "cassandra"
	cfg.ChunkSize = 0
	cfg.SemanticThreshold = 1.5
	cfg.APIKey = "your-api-key"
	report = NewUnifiedConfigValidator().ValidateConfig(cfg)
	assert.False(t, report.Valid)
	assert.Equal(t, 4, report.Summary.InvalidFields)
	assert.Contains(t, report.GetFormattedReport(), "x chunk_size")
}

func TestValidatorPostgresOnlyForPgVector(t *testing.T) {
	cfg := Defaults()
	cfg.APIBaseURL = "http://127.0.0.1:8080"
	cfg.PostgresURL = "mysql://nope"

	v := NewUnifiedConfigValidator()
	assert.True(t, v.ValidateConfig(cfg).Results["postgres_url"].Valid)

	cfg.Store = StorePgVector
	assert.False(t, v.ValidateConfig(cfg).Results["postgres_url"].Valid)
}

func TestEmptyAPIKeyIsWarning(t *testing.T) {
	cfg := Defaults()
	cfg.APIBaseURL = "http://127.0.0.1:8080"
	report := NewUnifiedConfigValidator().ValidateConfig(cfg)
	res := report.Results["api_key"]
	assert.True(t, res.Valid)
	assert.NotEmpty(t, res.Warnings)
}

func TestAddValidationRule(t *testing.T) {
	v := NewUnifiedConfigValidator()
	v.AddValidationRule("chunk_size", ValidationRule{
		Name: "max",
		Validator: func(value any) *ValidationResult {
			if value.(int) > 1000 {
				return &ValidationResult{Valid: false, Errors: []string{"too large"}}
			}
			return &ValidationResult{Valid: true}
		},
	})
	cfg := Defaults()
	cfg.APIBaseURL = "http://127.0.0.1:8080"
	cfg.ChunkSize = 5000
	assert.False(t, v.ValidateConfig(cfg).Results["chunk_size"].Valid)
}
