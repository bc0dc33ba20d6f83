package complete

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/multiling/pkg/config"
	"github.com/dasmlab/multiling/pkg/metrics"
)

const (
	// DefaultOpenAIModel is used when no model is configured.
	DefaultOpenAIModel = openai.GPT4oMini
	// DefaultTimeout bounds each completion request.
	DefaultTimeout = 60 * time.Second

	serviceOpenAI = "openai"
)

var errMissingAPIKey = errors.New("OpenAI API key is not configured")

// OpenAIClient implements Completer with the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
	apiKey string
	model  string
	logger *logrus.Logger
}

// NewOpenAIClient creates a client. baseURL may be empty for the public API.
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration, logger *logrus.Logger) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		apiKey: apiKey,
		model:  model,
		logger: logger,
	}
}

// Complete sends the prompt, with the optional system instruction first.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		c.logger.Error("OpenAI API key is not set")
		return "", completionError("OpenAI", errMissingAPIKey)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}
	if req.Format == FormatJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	c.logger.WithFields(logrus.Fields{
		"model":         c.model,
		"prompt_length": len(req.Prompt),
		"has_system":    req.System != "",
		"json":          req.Format == FormatJSON,
		"api_key":       config.MaskSecret(c.apiKey),
	}).Info("Sending request to OpenAI API")

	startTime := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(startTime)
	if err != nil {
		metrics.RecordRemoteCall(serviceOpenAI, "complete", duration, false, len(req.Prompt))
		c.logger.WithError(err).Error("OpenAI API error")
		return "", completionError("OpenAI", err)
	}
	if len(resp.Choices) == 0 {
		metrics.RecordRemoteCall(serviceOpenAI, "complete", duration, false, len(req.Prompt))
		c.logger.Error("OpenAI response has no choices")
		return "", completionError("OpenAI", errors.New("response has no choices"))
	}

	metrics.RecordRemoteCall(serviceOpenAI, "complete", duration, true, len(req.Prompt))
	c.logger.WithFields(logrus.Fields{
		"duration_ms":   duration.Milliseconds(),
		"total_tokens":  resp.Usage.TotalTokens,
		"finish_reason": resp.Choices[0].FinishReason,
	}).Info("Received response from OpenAI")

	return resp.Choices[0].Message.Content, nil
}
