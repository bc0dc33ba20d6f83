package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/multiling/pkg/apperr"
	"github.com/dasmlab/multiling/pkg/metrics"
)

const (
	// DefaultLibreTranslateURL is the default base URL for LibreTranslate API.
	DefaultLibreTranslateURL = "http://localhost:5000"

	serviceLibreTranslate = "libretranslate"
)

// LibreTranslateClient implements the Translator interface using LibreTranslate.
// LibreTranslate is a self-hosted, open-source machine translation API.
// It works with lower-case ISO 639-1 codes, so region qualifiers are dropped
// before every call.
type LibreTranslateClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	mapper     *LanguageMapper
	logger     *logrus.Logger
}

// NewLibreTranslateClient creates a new LibreTranslate client.
// baseURL should point to the LibreTranslate server (default: http://localhost:5000).
// apiKey is optional and only sent when set.
func NewLibreTranslateClient(baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *LibreTranslateClient {
	if baseURL == "" {
		baseURL = DefaultLibreTranslateURL
	}
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &LibreTranslateClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		mapper: NewLanguageMapper(),
		logger: logger,
	}
}

// translateRequest represents a LibreTranslate API request.
type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"` // e.g., "en" or "auto"
	Target string `json:"target"` // e.g., "fr"
	Format string `json:"format"` // "text" or "html"
	APIKey string `json:"api_key,omitempty"`
}

// translateResponse represents a LibreTranslate API response.
type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

type detectRequest struct {
	Q      string `json:"q"`
	APIKey string `json:"api_key,omitempty"`
}

type detectResponse struct {
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// CheckCredentials always succeeds: self-hosted instances run without keys.
func (c *LibreTranslateClient) CheckCredentials() error {
	return nil
}

// DetectLanguage returns the most confident language from /detect, upper-cased.
func (c *LibreTranslateClient) DetectLanguage(ctx context.Context, text string) (string, error) {
	var candidates []detectResponse
	if err := c.postJSON(ctx, "detect", "/detect", detectRequest{Q: text, APIKey: c.apiKey}, &candidates, len(text)); err != nil {
		return "", apperr.Wrap(apperr.KindLanguageDetection, "LibreTranslate request failed", err)
	}
	if len(candidates) == 0 || candidates[0].Language == "" {
		c.logger.Error("LibreTranslate detect response is empty")
		return "", apperr.New(apperr.KindLanguageDetection, "Invalid response format: no detected language")
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Confidence > best.Confidence {
			best = cand
		}
	}

	c.logger.WithFields(logrus.Fields{
		"detected_lang": best.Language,
		"confidence":    best.Confidence,
	}).Info("Detected language")
	return Base(best.Language), nil
}

// Translate translates text from sourceLang (or "auto" when empty) to targetLang.
func (c *LibreTranslateClient) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	source := "auto"
	if sourceLang != "" {
		source = c.mapper.ToBackendCode(sourceLang)
	}
	target := c.mapper.ToBackendCode(targetLang)

	c.logger.WithFields(logrus.Fields{
		"source_lang": source,
		"target_lang": target,
		"text_length": len(text),
	}).Debug("Translating text with LibreTranslate")

	reqPayload := translateRequest{
		Q:      text,
		Source: source,
		Target: target,
		Format: "text",
		APIKey: c.apiKey,
	}

	var ltResp translateResponse
	if err := c.postJSON(ctx, "translate", "/translate", reqPayload, &ltResp, len(text)); err != nil {
		return "", apperr.Wrap(apperr.KindTranslation, "LibreTranslate request failed", err)
	}

	c.logger.WithFields(logrus.Fields{
		"source_lang": source,
		"target_lang": target,
	}).Info("Translation completed successfully")

	return ltResp.TranslatedText, nil
}

func (c *LibreTranslateClient) postJSON(ctx context.Context, operation, path string, payload, out any, size int) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		c.logger.WithError(err).Error("Failed to encode LibreTranslate request")
		return fmt.Errorf("encode request: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		c.logger.WithError(err).Error("Failed to create LibreTranslate request")
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		metrics.RecordRemoteCall(serviceLibreTranslate, operation, duration, false, size)
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url": url,
		}).Error("LibreTranslate request failed")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"operation":   operation,
		"status_code": resp.StatusCode,
		"duration_ms": duration.Milliseconds(),
	}).Debug("LibreTranslate request completed")

	if resp.StatusCode != http.StatusOK {
		metrics.RecordRemoteCall(serviceLibreTranslate, operation, duration, false, size)
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(bodyBytes),
		}).Error("LibreTranslate request returned non-OK status")
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.RecordRemoteCall(serviceLibreTranslate, operation, duration, false, size)
		c.logger.WithError(err).Error("Failed to decode LibreTranslate response")
		return fmt.Errorf("decode response: %w", err)
	}

	metrics.RecordRemoteCall(serviceLibreTranslate, operation, duration, true, size)
	return nil
}

// CheckHealth verifies that LibreTranslate is ready and operational.
func (c *LibreTranslateClient) CheckHealth(ctx context.Context) error {
	c.logger.Debug("Checking LibreTranslate health")

	// Use the /languages endpoint as a health check
	url := c.baseURL + "/languages"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.WithError(err).Error("Failed to create health check request")
		return fmt.Errorf("create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url": url,
		}).Error("Health check request failed")
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
		}).Error("Health check returned non-OK status")
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	c.logger.Debug("LibreTranslate health check passed")
	return nil
}
