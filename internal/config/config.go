package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abhisek/quotagen/internal/llm"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	LLM        ProviderConfig   `yaml:"llm" mapstructure:"llm"`
	Verifier   ProviderConfig   `yaml:"verifier" mapstructure:"verifier"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Diversity  DiversityConfig  `yaml:"diversity" mapstructure:"diversity"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts" mapstructure:"artifacts"`
	Prune      PruneConfig      `yaml:"prune" mapstructure:"prune"`
	Curriculum CurriculumConfig `yaml:"curriculum" mapstructure:"curriculum"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the question store.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	// DSN is a file path for sqlite or a connection URL for postgres.
	// Empty sqlite DSN resolves to the default data directory.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// ProviderConfig configures one external service role.
type ProviderConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries     int     `yaml:"retries" mapstructure:"retries"`
}

// PipelineConfig bounds the generation loop.
type PipelineConfig struct {
	MaxAttempts     int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
	RetryDelayMs    int     `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	MaxRetryDelayMs int     `yaml:"max_retry_delay_ms" mapstructure:"max_retry_delay_ms"`
	RatePerSec      float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst           int     `yaml:"burst" mapstructure:"burst"`
}

// DiversityConfig tunes duplicate detection.
type DiversityConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	ReadingThreshold    float64 `yaml:"reading_threshold" mapstructure:"reading_threshold"`
	MaxExclusions       int     `yaml:"max_exclusions" mapstructure:"max_exclusions"`
}

// MarkerConfig is one leaked-reasoning phrase and its reporting severity.
type MarkerConfig struct {
	Phrase   string `yaml:"phrase" mapstructure:"phrase"`
	Severity string `yaml:"severity" mapstructure:"severity"`
}

// ArtifactsConfig lists the markers the artifact scan looks for.
type ArtifactsConfig struct {
	Markers []MarkerConfig `yaml:"markers" mapstructure:"markers"`
}

// PruneConfig configures the balance pruner.
type PruneConfig struct {
	Policy string `yaml:"policy" mapstructure:"policy"`
	DryRun bool   `yaml:"dry_run" mapstructure:"dry_run"`
}

// CurriculumConfig points at the curriculum file or directory.
type CurriculumConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultMarkers is the built-in leaked-reasoning marker list.
var DefaultMarkers = []MarkerConfig{
	{Phrase: "wait, let me", Severity: "low"},
	{Phrase: "let me verify", Severity: "low"},
	{Phrase: "let me check", Severity: "low"},
	{Phrase: "hold on", Severity: "low"},
	{Phrase: "actually,", Severity: "low"},
	{Phrase: "hmm", Severity: "low"},
	{Phrase: "recalculate", Severity: "high"},
	{Phrase: "recalculating", Severity: "high"},
	{Phrase: "let me recalculate", Severity: "high"},
	{Phrase: "i made an error", Severity: "high"},
	{Phrase: "i made a mistake", Severity: "high"},
	{Phrase: "that's not right", Severity: "high"},
	{Phrase: "doesn't match any option", Severity: "high"},
}

// Load reads configuration from file and environment. path names an explicit
// config file; when empty, quotagen.yaml is looked up in the working
// directory and the user config directory and is optional.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("quotagen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/quotagen")
	}

	v.SetEnvPrefix("QUOTAGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "")

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout_secs", 60)
	v.SetDefault("llm.retries", 3)

	// Empty verifier fields inherit from llm.
	v.SetDefault("verifier.provider", "")
	v.SetDefault("verifier.model", "")
	v.SetDefault("verifier.api_key", "")
	v.SetDefault("verifier.base_url", "")
	v.SetDefault("verifier.max_tokens", 512)
	v.SetDefault("verifier.temperature", 0.0)
	v.SetDefault("verifier.timeout_secs", 0)
	v.SetDefault("verifier.retries", 0)

	v.SetDefault("pipeline.max_attempts", 5)
	v.SetDefault("pipeline.concurrency", 2)
	v.SetDefault("pipeline.retry_delay_ms", 500)
	v.SetDefault("pipeline.max_retry_delay_ms", 8000)
	v.SetDefault("pipeline.rate_per_sec", 2.0)
	v.SetDefault("pipeline.burst", 4)

	v.SetDefault("diversity.similarity_threshold", 0.8)
	v.SetDefault("diversity.reading_threshold", 0.85)
	v.SetDefault("diversity.max_exclusions", 30)

	markers := make([]map[string]any, len(DefaultMarkers))
	for i, m := range DefaultMarkers {
		markers[i] = map[string]any{"phrase": m.Phrase, "severity": m.Severity}
	}
	v.SetDefault("artifacts.markers", markers)

	v.SetDefault("prune.policy", "newest")
	v.SetDefault("prune.dry_run", false)

	v.SetDefault("curriculum.path", "curriculum")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks values the pipeline cannot run without.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		errs = append(errs, "store.dsn is required for postgres")
	}
	if c.Pipeline.MaxAttempts < 1 {
		errs = append(errs, "pipeline.max_attempts must be at least 1")
	}
	if c.Pipeline.Concurrency < 1 {
		errs = append(errs, "pipeline.concurrency must be at least 1")
	}
	if c.Pipeline.RatePerSec < 0 {
		errs = append(errs, "pipeline.rate_per_sec must not be negative")
	}
	for name, th := range map[string]float64{
		"diversity.similarity_threshold": c.Diversity.SimilarityThreshold,
		"diversity.reading_threshold":    c.Diversity.ReadingThreshold,
	} {
		if th <= 0 || th > 1 {
			errs = append(errs, fmt.Sprintf("%s must be in (0, 1], got %v", name, th))
		}
	}
	for _, m := range c.Artifacts.Markers {
		if strings.TrimSpace(m.Phrase) == "" {
			errs = append(errs, "artifacts.markers entries need a phrase")
		}
		if m.Severity != "low" && m.Severity != "high" {
			errs = append(errs, fmt.Sprintf("artifacts marker %q: severity must be low or high", m.Phrase))
		}
	}
	switch c.Prune.Policy {
	case "newest", "oldest":
	default:
		errs = append(errs, fmt.Sprintf("prune.policy must be newest or oldest, got %q", c.Prune.Policy))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RetryDelay returns the base delay between generation attempts.
func (p PipelineConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayMs) * time.Millisecond
}

// MaxRetryDelay returns the cap for the exponential attempt delay.
func (p PipelineConfig) MaxRetryDelay() time.Duration {
	return time.Duration(p.MaxRetryDelayMs) * time.Millisecond
}

// GeneratorLLM builds the provider configuration for question generation.
func (c *Config) GeneratorLLM() llm.Config {
	return c.providerConfig(c.LLM)
}

// VerifierLLM builds the provider configuration for answer verification.
// Unset verifier fields fall back to the generation provider.
func (c *Config) VerifierLLM() llm.Config {
	p := c.Verifier
	if p.Provider == "" {
		p.Provider = c.LLM.Provider
		if p.Model == "" {
			p.Model = c.LLM.Model
		}
		if p.APIKey == "" {
			p.APIKey = c.LLM.APIKey
		}
		if p.BaseURL == "" {
			p.BaseURL = c.LLM.BaseURL
		}
	}
	if p.TimeoutSecs == 0 {
		p.TimeoutSecs = c.LLM.TimeoutSecs
	}
	if p.Retries == 0 {
		p.Retries = c.LLM.Retries
	}
	return c.providerConfig(p)
}

func (c *Config) providerConfig(p ProviderConfig) llm.Config {
	out := llm.DefaultConfig()
	out.Provider = p.Provider

	if p.TimeoutSecs > 0 {
		out.Timeout = time.Duration(p.TimeoutSecs) * time.Second
	}
	if p.Retries > 0 {
		out.Retry.MaxAttempts = p.Retries
	}
	out.RateLimit = llm.RateLimitConfig{
		RequestsPerSecond: c.Pipeline.RatePerSec,
		Burst:             c.Pipeline.Burst,
	}

	switch p.Provider {
	case "anthropic":
		out.Anthropic.APIKey = p.APIKey
		out.Anthropic.BaseURL = p.BaseURL
		if p.Model != "" {
			out.Anthropic.Model = p.Model
		}
	case "openai":
		out.OpenAI.APIKey = p.APIKey
		out.OpenAI.BaseURL = p.BaseURL
		if p.Model != "" {
			out.OpenAI.Model = p.Model
		}
	case "gemini":
		out.Gemini.APIKey = p.APIKey
		if p.Model != "" {
			out.Gemini.Model = p.Model
		}
	case "openrouter":
		out.OpenRouter.APIKey = p.APIKey
		if p.BaseURL != "" {
			out.OpenRouter.BaseURL = p.BaseURL
		}
		if p.Model != "" {
			out.OpenRouter.Model = p.Model
		}
	}

	if p.Provider == "" {
		if discovered, ok := llm.DiscoverConfig(out); ok {
			return discovered
		}
		return out
	}
	return out.WithEnvKey()
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
