// Package config loads and validates the GHILLIE_* environment
// configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/leynos/ghillie/internal/faults"
	"github.com/leynos/ghillie/internal/health"
	"github.com/leynos/ghillie/internal/ingest"
	"github.com/leynos/ghillie/internal/report"
	"github.com/leynos/ghillie/internal/status"
)

// Config is the fully resolved process configuration. DatabaseURL may be
// empty, which puts the server into health-only mode.
type Config struct {
	DatabaseURL string
	Host        string
	Port        int
	LogLevel    string

	GitHubToken   string
	CataloguePath string

	StatusModelBackend string
	OpenAIAPIKey       string
	OpenAIEndpoint     string
	OpenAIModel        string
	OpenAITemperature  float64
	OpenAIMaxTokens    int
	AnthropicAPIKey    string
	AnthropicModel     string
	AnthropicMaxTokens int

	ReportingWindowDays int
	ReportSinkPath      string

	InitialLookbackDays   int
	OverlapMinutes        int
	MaxEventsPerKind      int
	StalledThresholdHours int
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GHILLIE")
	v.AutomaticEnv()

	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("OPENAI_MAX_TOKENS", 1024)
	v.SetDefault("ANTHROPIC_MAX_TOKENS", 1024)
	v.SetDefault("REPORTING_WINDOW_DAYS", report.DefaultWindowDays)
	v.SetDefault("INITIAL_LOOKBACK_DAYS", 7)
	v.SetDefault("OVERLAP_MINUTES", 5)
	v.SetDefault("MAX_EVENTS_PER_KIND", ingest.DefaultMaxEventsPerKind)
	v.SetDefault("STALLED_THRESHOLD_HOURS", 24)

	cfg := &Config{
		DatabaseURL: v.GetString("DATABASE_URL"),
		Host:        v.GetString("HOST"),
		Port:        v.GetInt("PORT"),
		LogLevel:    v.GetString("LOG_LEVEL"),

		GitHubToken:   v.GetString("GITHUB_TOKEN"),
		CataloguePath: v.GetString("CATALOGUE_PATH"),

		StatusModelBackend: v.GetString("STATUS_MODEL_BACKEND"),
		OpenAIAPIKey:       v.GetString("OPENAI_API_KEY"),
		OpenAIEndpoint:     v.GetString("OPENAI_ENDPOINT"),
		OpenAIModel:        v.GetString("OPENAI_MODEL"),
		OpenAITemperature:  v.GetFloat64("OPENAI_TEMPERATURE"),
		OpenAIMaxTokens:    v.GetInt("OPENAI_MAX_TOKENS"),
		AnthropicAPIKey:    v.GetString("ANTHROPIC_API_KEY"),
		AnthropicModel:     v.GetString("ANTHROPIC_MODEL"),
		AnthropicMaxTokens: v.GetInt("ANTHROPIC_MAX_TOKENS"),

		ReportingWindowDays: v.GetInt("REPORTING_WINDOW_DAYS"),
		ReportSinkPath:      v.GetString("REPORT_SINK_PATH"),

		InitialLookbackDays:   v.GetInt("INITIAL_LOOKBACK_DAYS"),
		OverlapMinutes:        v.GetInt("OVERLAP_MINUTES"),
		MaxEventsPerKind:      v.GetInt("MAX_EVENTS_PER_KIND"),
		StalledThresholdHours: v.GetInt("STALLED_THRESHOLD_HOURS"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects out-of-range values that must fail startup. Backend
// credential checks happen when the backend is actually constructed.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return faults.Wrap(fmt.Errorf("port must be in 1..65535, got %d", c.Port), faults.CategoryConfig)
	}
	switch c.StatusModelBackend {
	case "", status.BackendMock, status.BackendOpenAI, status.BackendAnthropic:
	default:
		return faults.Wrap(fmt.Errorf("unknown status model backend %q", c.StatusModelBackend), faults.CategoryConfig)
	}
	if c.ReportingWindowDays < 0 {
		return faults.Wrap(fmt.Errorf("reporting window days must be positive, got %d", c.ReportingWindowDays), faults.CategoryConfig)
	}
	return nil
}

// ListenAddr is the host:port the HTTP server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HealthOnly reports whether the process runs without a database.
func (c *Config) HealthOnly() bool {
	return c.DatabaseURL == ""
}

// Ingest converts the env knobs into the ingestion run config.
func (c *Config) Ingest() ingest.Config {
	return ingest.Config{
		InitialLookback:  time.Duration(c.InitialLookbackDays) * 24 * time.Hour,
		Overlap:          time.Duration(c.OverlapMinutes) * time.Minute,
		MaxEventsPerKind: c.MaxEventsPerKind,
	}
}

// Health converts the env knobs into the health service config.
func (c *Config) Health() health.Config {
	return health.Config{
		StalledThreshold: time.Duration(c.StalledThresholdHours) * time.Hour,
	}
}

// Reporting converts the env knobs into the reporting service config.
func (c *Config) Reporting() report.Config {
	return report.Config{
		WindowDays: c.ReportingWindowDays,
		SinkPath:   c.ReportSinkPath,
	}
}

// OpenAI assembles the OpenAI backend config.
func (c *Config) OpenAI() status.OpenAIConfig {
	return status.OpenAIConfig{
		APIKey:      c.OpenAIAPIKey,
		Endpoint:    c.OpenAIEndpoint,
		Model:       c.OpenAIModel,
		Temperature: c.OpenAITemperature,
		MaxTokens:   c.OpenAIMaxTokens,
	}
}

// Anthropic assembles the Anthropic backend config.
func (c *Config) Anthropic() status.AnthropicConfig {
	return status.AnthropicConfig{
		APIKey:    c.AnthropicAPIKey,
		Model:     c.AnthropicModel,
		MaxTokens: c.AnthropicMaxTokens,
	}
}
