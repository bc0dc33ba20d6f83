package translate

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// EngineType represents the type of translation engine to use.
type EngineType string

const (
	// EngineDeepL uses the DeepL REST API as the backend.
	EngineDeepL EngineType = "deepl"
	// EngineLibreTranslate uses LibreTranslate as the backend.
	EngineLibreTranslate EngineType = "libretranslate"
)

// Config holds configuration for creating a Translator instance.
type Config struct {
	// Engine specifies which translation engine to use.
	Engine EngineType
	// BaseURL is the DeepL translate endpoint or the LibreTranslate base URL.
	BaseURL string
	// APIKey is required for DeepL and optional for LibreTranslate.
	APIKey string
	// Timeout bounds each HTTP request. Defaults to DefaultRemoteTimeout.
	Timeout time.Duration
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// NewTranslator creates a new Translator instance based on the configuration.
// The returned client is stateless and safe to share between requests.
func NewTranslator(cfg Config) (Translator, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	cfg.Logger.WithFields(logrus.Fields{
		"engine":   cfg.Engine,
		"base_url": cfg.BaseURL,
	}).Info("Creating translator instance")

	switch cfg.Engine {
	case EngineDeepL:
		return NewDeepLClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, cfg.Logger), nil
	case EngineLibreTranslate:
		return NewLibreTranslateClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, cfg.Logger), nil
	default:
		cfg.Logger.WithFields(logrus.Fields{
			"engine": cfg.Engine,
		}).Error("Unknown translation engine")
		return nil, fmt.Errorf("unknown translation engine: %s", cfg.Engine)
	}
}

// ParseEngineType parses a string into an EngineType.
// Returns an error if the string is not a valid engine type.
func ParseEngineType(s string) (EngineType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deepl":
		return EngineDeepL, nil
	case "libretranslate":
		return EngineLibreTranslate, nil
	default:
		return "", fmt.Errorf("unknown engine type: %s (supported: deepl, libretranslate)", s)
	}
}
