package server

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/multiling/pkg/apperr"
	"github.com/dasmlab/multiling/pkg/complete"
	"github.com/dasmlab/multiling/pkg/service"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// stubTranslator detects every text as English and renders translations as
// "<TARGET>:<text>".
type stubTranslator struct {
	credErr   error
	detectErr error
	healthErr error
}

func (s *stubTranslator) CheckCredentials() error { return s.credErr }

func (s *stubTranslator) DetectLanguage(ctx context.Context, text string) (string, error) {
	if s.detectErr != nil {
		return "", s.detectErr
	}
	return "EN", nil
}

func (s *stubTranslator) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	return targetLang + ":" + text, nil
}

func (s *stubTranslator) CheckHealth(ctx context.Context) error { return s.healthErr }

// stubCompleter fails analysis requests (those with a system prompt) and
// answers everything else.
type stubCompleter struct{}

func (stubCompleter) Complete(ctx context.Context, req complete.Request) (string, error) {
	if req.System != "" && req.Format != complete.FormatJSON {
		return "", apperr.Wrap(apperr.KindCompletion, "OpenAI API error", errors.New("boom"))
	}
	if req.Format == complete.FormatJSON {
		return `{"DE":"good"}`, nil
	}
	return "reply to " + strings.TrimSpace(req.Prompt), nil
}

func newTestService(tr *stubTranslator) *service.AutoTranslateService {
	return service.NewAutoTranslateService(tr, stubCompleter{}, 1, quietLogger())
}
