package complete

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JexSrs/go-ollama"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/multiling/pkg/metrics"
)

const serviceOllama = "ollama"

// OllamaClient implements Completer with a self-hosted Ollama server.
// JSON format is requested through the prompt; the model is asked to reply
// with a single object.
type OllamaClient struct {
	client  *ollama.Ollama
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

type generateResult struct {
	response string
	done     bool
	err      error
}

// NewOllamaClient creates a client for the Ollama server at host. Each
// generate call is bounded by timeout, or DefaultTimeout when timeout <= 0.
func NewOllamaClient(host url.URL, model string, timeout time.Duration, logger *logrus.Logger) *OllamaClient {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger.WithFields(logrus.Fields{
		"host":    host.String(),
		"model":   model,
		"timeout": timeout.String(),
	}).Info("Using Ollama client")

	client := ollama.New(host)
	client.Http = &http.Client{Timeout: timeout}

	return &OllamaClient{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Complete sends one non-streaming generate request.
// go-ollama takes no context, so the call runs in its own goroutine and is
// abandoned when ctx ends; the HTTP client timeout then closes it.
func (c *OllamaClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", completionError("Ollama", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := req.Prompt
	if req.Format == FormatJSON {
		prompt += "\n\nRespond with a single JSON object and nothing else."
	}

	c.logger.WithFields(logrus.Fields{
		"model":         c.model,
		"prompt_length": len(prompt),
		"has_system":    req.System != "",
	}).Info("Sending request to Ollama")

	startTime := time.Now()
	resultChan := make(chan generateResult, 1)
	go func() {
		response, done, err := c.generate(req.System, prompt)
		resultChan <- generateResult{response: response, done: done, err: err}
	}()

	var res generateResult
	select {
	case res = <-resultChan:
	case <-ctx.Done():
		metrics.RecordRemoteCall(serviceOllama, "complete", time.Since(startTime), false, len(prompt))
		c.logger.WithError(ctx.Err()).Error("Ollama request abandoned")
		return "", completionError("Ollama", ctx.Err())
	}

	duration := time.Since(startTime)
	if res.err != nil {
		metrics.RecordRemoteCall(serviceOllama, "complete", duration, false, len(prompt))
		c.logger.WithError(res.err).Error("Ollama API error")
		return "", completionError("Ollama", res.err)
	}
	if !res.done || strings.TrimSpace(res.response) == "" {
		metrics.RecordRemoteCall(serviceOllama, "complete", duration, false, len(prompt))
		return "", completionError("Ollama", errors.New("empty or unfinished response"))
	}

	metrics.RecordRemoteCall(serviceOllama, "complete", duration, true, len(prompt))
	c.logger.WithField("duration_ms", duration.Milliseconds()).Info("Received response from Ollama")

	if req.Format == FormatJSON {
		return stripCodeFence(res.response), nil
	}
	return res.response, nil
}

func (c *OllamaClient) generate(system, prompt string) (string, bool, error) {
	if system == "" {
		res, err := c.client.Generate(
			c.client.Generate.WithModel(c.model),
			c.client.Generate.WithPrompt(prompt),
		)
		if err != nil {
			return "", false, err
		}
		return res.Response, res.Done, nil
	}

	res, err := c.client.Generate(
		c.client.Generate.WithModel(c.model),
		c.client.Generate.WithSystem(system),
		c.client.Generate.WithPrompt(prompt),
	)
	if err != nil {
		return "", false, err
	}
	return res.Response, res.Done, nil
}

// stripCodeFence removes a leading ```lang line and a trailing ``` line
// that models sometimes wrap around JSON output.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}

	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		t = strings.TrimPrefix(t, "```")
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
