// Package complete wraps remote large-language-model backends behind a single
// Completer interface. Clients are built once and shared between requests.
package complete

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/multiling/pkg/apperr"
)

// Format selects the shape of the model output.
type Format int

const (
	// FormatText asks for free-form text.
	FormatText Format = iota
	// FormatJSON asks for a single JSON object.
	FormatJSON
)

// Request is one prompt sent to a completion backend.
type Request struct {
	// Prompt is sent as the user message.
	Prompt string
	// System is an optional system-role instruction.
	System string
	// Format selects text or JSON output.
	Format Format
	// Temperature overrides the backend default when non-nil.
	Temperature *float32
}

// Completer sends prompts to a completion model.
type Completer interface {
	// Complete returns the model's text output. Every failure is an
	// apperr.KindCompletion error wrapping the cause.
	Complete(ctx context.Context, req Request) (string, error)
}

// EngineType represents the completion backend to use.
type EngineType string

const (
	// EngineOpenAI uses the OpenAI chat completions API.
	EngineOpenAI EngineType = "openai"
	// EngineOllama uses a self-hosted Ollama server.
	EngineOllama EngineType = "ollama"
)

// Config holds configuration for creating a Completer instance.
type Config struct {
	Engine EngineType
	// APIKey is used by OpenAI. An empty key fails at call time.
	APIKey string
	// BaseURL overrides the OpenAI API base or sets the Ollama host.
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *logrus.Logger
}

// NewCompleter creates a Completer based on the configuration.
func NewCompleter(cfg Config) (Completer, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	cfg.Logger.WithFields(logrus.Fields{
		"engine": cfg.Engine,
		"model":  cfg.Model,
	}).Info("Creating completer instance")

	switch cfg.Engine {
	case EngineOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout, cfg.Logger), nil
	case EngineOllama:
		host, err := url.Parse(cfg.BaseURL)
		if err != nil || host.Scheme == "" || host.Host == "" {
			return nil, fmt.Errorf("invalid Ollama URL %q", cfg.BaseURL)
		}
		return NewOllamaClient(*host, cfg.Model, cfg.Timeout, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("unknown completion engine: %s", cfg.Engine)
	}
}

// ParseEngineType parses a string into an EngineType.
func ParseEngineType(s string) (EngineType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return EngineOpenAI, nil
	case "ollama":
		return EngineOllama, nil
	default:
		return "", fmt.Errorf("unknown engine type: %s (supported: openai, ollama)", s)
	}
}

func completionError(service string, err error) error {
	return apperr.Wrap(apperr.KindCompletion, service+" API error", err)
}
