package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/multiling/pkg/apperr"
	"github.com/dasmlab/multiling/pkg/config"
	"github.com/dasmlab/multiling/pkg/metrics"
)

const (
	// DefaultDeepLURL is the free-tier translate endpoint.
	DefaultDeepLURL = "https://api-free.deepl.com/v2/translate"
	// DefaultRemoteTimeout is the default timeout for HTTP requests to remote backends.
	DefaultRemoteTimeout = 60 * time.Second

	// detectionPivot is the arbitrary target used when only detection is wanted.
	detectionPivot = "EN-US"
	serviceDeepL   = "deepl"
)

// DeepLClient implements the Translator interface using the DeepL REST API.
type DeepLClient struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewDeepLClient creates a new DeepL client. apiURL is the full translate
// endpoint (default: https://api-free.deepl.com/v2/translate).
func NewDeepLClient(apiURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *DeepLClient {
	if apiURL == "" {
		apiURL = DefaultDeepLURL
	}
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &DeepLClient{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// deeplResponse represents a DeepL translate response.
type deeplResponse struct {
	Translations []struct {
		Text                   string `json:"text"`
		DetectedSourceLanguage string `json:"detected_source_language"`
	} `json:"translations"`
}

// CheckCredentials fails when no API key is configured.
func (c *DeepLClient) CheckCredentials() error {
	if c.apiKey == "" {
		return apperr.New(apperr.KindConfiguration, "DeepL API key is not configured")
	}
	return nil
}

// DetectLanguage asks DeepL to translate text into a pivot language and reads
// the detected source language from the response.
func (c *DeepLClient) DetectLanguage(ctx context.Context, text string) (string, error) {
	if err := c.CheckCredentials(); err != nil {
		c.logger.Error("DeepL API key is not set")
		return "", apperr.Wrap(apperr.KindLanguageDetection, "DeepL request not sent", err)
	}

	c.logger.WithFields(logrus.Fields{
		"text_length": len(text),
		"api_url":     c.apiURL,
		"api_key":     config.MaskSecret(c.apiKey),
	}).Info("Detecting language with DeepL")

	resp, err := c.post(ctx, "detect", text, detectionPivot, "")
	if err != nil {
		return "", apperr.Wrap(apperr.KindLanguageDetection, "DeepL request failed", err)
	}
	if len(resp.Translations) == 0 || resp.Translations[0].DetectedSourceLanguage == "" {
		c.logger.Error("DeepL response has no detected_source_language")
		return "", apperr.New(apperr.KindLanguageDetection, "Invalid response format: missing detected_source_language")
	}

	detected := resp.Translations[0].DetectedSourceLanguage
	c.logger.WithField("detected_lang", detected).Info("Detected language")
	return detected, nil
}

// Translate translates text into targetLang. sourceLang is sent only when set.
func (c *DeepLClient) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	if err := c.CheckCredentials(); err != nil {
		c.logger.Error("DeepL API key is not set")
		return "", apperr.Wrap(apperr.KindTranslation, "DeepL request not sent", err)
	}

	c.logger.WithFields(logrus.Fields{
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"text_length": len(text),
		"api_key":     config.MaskSecret(c.apiKey),
	}).Debug("Translating text with DeepL")

	resp, err := c.post(ctx, "translate", text, targetLang, sourceLang)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTranslation, "DeepL request failed", err)
	}
	if len(resp.Translations) == 0 {
		c.logger.Error("DeepL response has no translations")
		return "", apperr.New(apperr.KindTranslation, "Invalid response format: empty translations")
	}

	c.logger.WithField("target_lang", targetLang).Info("Translation completed successfully")
	return resp.Translations[0].Text, nil
}

// post sends one form-encoded request to the translate endpoint.
func (c *DeepLClient) post(ctx context.Context, operation, text, targetLang, sourceLang string) (*deeplResponse, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", targetLang)
	form.Set("auth_key", c.apiKey)
	if sourceLang != "" {
		form.Set("source_lang", sourceLang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		c.logger.WithError(err).Error("Failed to create DeepL request")
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		metrics.RecordRemoteCall(serviceDeepL, operation, duration, false, len(text))
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url": c.apiURL,
		}).Error("DeepL request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"operation":   operation,
		"status_code": resp.StatusCode,
		"duration_ms": duration.Milliseconds(),
	}).Info("DeepL API response status")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordRemoteCall(serviceDeepL, operation, duration, false, len(text))
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(bodyBytes),
		}).Error("DeepL request returned non-OK status")
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var dr deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		metrics.RecordRemoteCall(serviceDeepL, operation, duration, false, len(text))
		c.logger.WithError(err).Error("Failed to decode DeepL response")
		return nil, fmt.Errorf("decode response: %w", err)
	}

	metrics.RecordRemoteCall(serviceDeepL, operation, duration, true, len(text))
	return &dr, nil
}

// CheckHealth calls the usage endpoint next to the configured translate URL.
func (c *DeepLClient) CheckHealth(ctx context.Context) error {
	if err := c.CheckCredentials(); err != nil {
		return err
	}

	usageURL := strings.TrimSuffix(c.apiURL, "/translate") + "/usage"
	c.logger.WithField("url", usageURL).Debug("Checking DeepL health")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, usageURL, nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("url", usageURL).Error("Health check request failed")
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("status_code", resp.StatusCode).Error("Health check returned non-OK status")
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	c.logger.Debug("DeepL health check passed")
	return nil
}
