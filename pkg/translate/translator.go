package translate

import (
	"context"
)

// Translator defines the interface for remote machine translation backends.
// This abstraction allows us to switch between DeepL and LibreTranslate
// without changing the pipeline.
type Translator interface {
	// DetectLanguage returns the source language the backend detects for text.
	// Failures are apperr.KindLanguageDetection errors.
	DetectLanguage(ctx context.Context, text string) (string, error)

	// Translate translates text into targetLang. sourceLang may be empty to
	// let the backend detect it. Failures are apperr.KindTranslation errors.
	Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error)

	// CheckCredentials reports a missing API key without touching the network.
	CheckCredentials() error

	// CheckHealth verifies that the translation backend is reachable.
	CheckHealth(ctx context.Context) error
}
