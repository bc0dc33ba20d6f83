package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/multiling/pkg/apperr"
	"github.com/dasmlab/multiling/pkg/complete"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type translateCall struct {
	Text       string
	TargetLang string
	SourceLang string
}

// fakeTranslator records every call. Translations are rendered as
// "<TARGET>(<text>)" unless the target is listed in fail.
type fakeTranslator struct {
	credErr  error
	detected string
	// detectByText overrides detected for specific inputs.
	detectByText map[string]string
	detectErr    error
	fail         map[string]bool

	mu          sync.Mutex
	detectCalls int
	calls       []translateCall
}

func (f *fakeTranslator) CheckCredentials() error {
	return f.credErr
}

func (f *fakeTranslator) DetectLanguage(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.detectCalls++
	f.mu.Unlock()

	if f.detectErr != nil {
		return "", f.detectErr
	}
	if lang, ok := f.detectByText[text]; ok {
		return lang, nil
	}
	return f.detected, nil
}

func (f *fakeTranslator) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, translateCall{Text: text, TargetLang: targetLang, SourceLang: sourceLang})
	f.mu.Unlock()

	if f.fail[targetLang] {
		return "", apperr.New(apperr.KindTranslation, "quota exceeded")
	}
	return rendered(targetLang, text), nil
}

func (f *fakeTranslator) CheckHealth(ctx context.Context) error {
	return nil
}

func (f *fakeTranslator) translateCalls() []translateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]translateCall(nil), f.calls...)
}

func (f *fakeTranslator) detections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detectCalls
}

func rendered(target, text string) string {
	return fmt.Sprintf("%s(%s)", target, text)
}

// fakeCompleter answers with respond, or echoes the prompt when respond is nil.
type fakeCompleter struct {
	respond func(req complete.Request) (string, error)

	mu       sync.Mutex
	requests []complete.Request
}

func (f *fakeCompleter) Complete(ctx context.Context, req complete.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.respond == nil {
		return "answer: " + req.Prompt, nil
	}
	return f.respond(req)
}

func (f *fakeCompleter) calls() []complete.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]complete.Request(nil), f.requests...)
}

var errCompletionDown = apperr.Wrap(apperr.KindCompletion, "OpenAI API error", errors.New("rate limited"))
