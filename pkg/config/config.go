// Package config loads the service configuration from the environment.
// The Config value is built once at process start and passed to every
// component that needs it; business logic never reads the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into Config.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	// ErrInvalidConfig is returned when parsed values are out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds every setting of the service.
type Config struct {
	// Translation backend
	TranslationEngine    string `env:"MT_ENGINE" envDefault:"deepl"`
	DeepLAPIKey          string `env:"DEEPL_API_KEY"`
	DeepLAPIURL          string `env:"DEEPL_API_URL" envDefault:"https://api-free.deepl.com/v2/translate"`
	LibreTranslateURL    string `env:"LIBRETRANSLATE_URL" envDefault:"http://localhost:5000"`
	LibreTranslateAPIKey string `env:"LIBRETRANSLATE_API_KEY"`

	// Completion backend
	CompletionEngine string `env:"LLM_ENGINE" envDefault:"openai"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	OpenAIModel      string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OllamaURL        string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaModel      string `env:"OLLAMA_MODEL" envDefault:"llama3.1"`

	// Pipeline
	MaxConcurrency int           `env:"MAX_CONCURRENCY" envDefault:"1"`
	RemoteTimeout  time.Duration `env:"REMOTE_TIMEOUT" envDefault:"60s"`

	// Transport
	HTTPAddr           string        `env:"HTTP_ADDR" envDefault:":8000"`
	GRPCPort           int           `env:"GRPC_PORT" envDefault:"50051"`
	ShutdownTimeout    time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file and parses the environment into a Config.
// Missing .env files are ignored.
func Load(envFiles ...string) (Config, error) {
	// Ignore errors - the .env file might not exist and that's ok
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. It does not require API keys: a missing
// translation key is reported by the translation stage at request time.
func (c Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("%w: MAX_CONCURRENCY must be >= 1, got %d", ErrInvalidConfig, c.MaxConcurrency)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("%w: GRPC_PORT out of range: %d", ErrInvalidConfig, c.GRPCPort)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: HTTP_ADDR is empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// MaskSecret returns the first four characters of a secret followed by "...".
// Empty secrets are reported as "<unset>".
func MaskSecret(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	if len(secret) <= 4 {
		return secret[:1] + "..."
	}
	return secret[:4] + "..."
}
