// Package config holds the application configuration for the API server
// and pipeline.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	appconfig "github.com/Rohitw3code/sentinews-api/pkg/config"
	"github.com/Rohitw3code/sentinews-api/pkg/llm"
	"github.com/Rohitw3code/sentinews-api/pkg/storage"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database storage.Config `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"SENTINEWS_ADDR"`
}

// AuthConfig holds the admin credential and token signing secret.
// PasswordHash is a bcrypt hash of the pipeline admin password.
type AuthConfig struct {
	PasswordHash string `yaml:"password_hash" env:"PIPELINE_PASSWORD_HASH"`
	JWTSecret    string `yaml:"jwt_secret" env:"SENTINEWS_JWT_SECRET"`
}

// LLMConfig holds provider credentials and the defaults used by
// scheduled runs.
type LLMConfig struct {
	DefaultProvider string        `yaml:"default_provider" env:"LLM_PROVIDER"`
	DefaultModel    string        `yaml:"default_model" env:"LLM_MODEL"`
	OpenAIAPIKey    string        `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	GroqAPIKey      string        `yaml:"groq_api_key" env:"GROQ_API_KEY"`
	Timeout         time.Duration `yaml:"timeout" env:"LLM_TIMEOUT"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"SENTINEWS_LOG_LEVEL"`
}

// Default returns the configuration used when no file or env overrides
// are present.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: storage.Config{Path: "news_data.db"},
		LLM: LLMConfig{
			DefaultProvider: string(llm.OpenAI),
			Timeout:         60 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the config file at path over the defaults. A missing file
// is fine; env overrides still apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := appconfig.LoadOrDefault(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ClientConfig builds the LLM client configuration for a run. Empty
// provider or model fall back to the configured defaults; the matching
// API key must be present.
func (c Config) ClientConfig(provider, model string) (llm.Config, error) {
	if provider == "" {
		provider = c.LLM.DefaultProvider
	}
	p := llm.Provider(strings.ToLower(provider))

	var apiKey string
	switch p {
	case llm.OpenAI:
		apiKey = c.LLM.OpenAIAPIKey
	case llm.Groq:
		apiKey = c.LLM.GroqAPIKey
	default:
		return llm.Config{}, fmt.Errorf("unsupported provider %q", provider)
	}
	if apiKey == "" {
		return llm.Config{}, fmt.Errorf("no API key configured for provider %q", p)
	}

	if model == "" {
		model = c.LLM.DefaultModel
	}
	if model == "" {
		model = llm.DefaultModel(p)
	}

	cfg := llm.DefaultConfig()
	cfg.Provider = p
	cfg.Model = model
	cfg.APIKey = apiKey
	if c.LLM.Timeout > 0 {
		cfg.Timeout = c.LLM.Timeout
	}
	return cfg, nil
}

// LogLevel maps the configured level name to a slog level.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
