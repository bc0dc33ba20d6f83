package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/multiling/pkg/apperr"
	"github.com/dasmlab/multiling/pkg/complete"
	"github.com/dasmlab/multiling/pkg/metrics"
	"github.com/dasmlab/multiling/pkg/requestid"
	"github.com/dasmlab/multiling/pkg/translate"
)

const (
	analysisSystemPrompt = "You are a multilingual translation expert."

	// FallbackPrefix starts the value stored for a language whose question
	// response could not be generated.
	FallbackPrefix = "Failed to get response: "
)

var individualAnalysisTemperature float32 = 0.3

// ResponseOptions selects the optional stages run after translation.
type ResponseOptions struct {
	Analyze            bool
	IndividualAnalysis bool
	QuestionResponse   bool
}

// Responses holds the outputs of the optional stages. A nil field means the
// stage was not requested or failed.
type Responses struct {
	Analysis           *string
	IndividualAnalyses map[string]string
	QuestionResponses  map[string]string
	EnglishResponses   map[string]string
}

// ResponseService runs the completion-backed stages over a TranslationResult.
type ResponseService struct {
	completer      complete.Completer
	translations   *TranslationService
	maxConcurrency int
	logger         *logrus.Logger
}

// NewResponseService creates a new ResponseService. translations is used to
// back-translate question responses into English.
func NewResponseService(completer complete.Completer, translations *TranslationService, maxConcurrency int, logger *logrus.Logger) *ResponseService {
	if logger == nil {
		logger = logrus.New()
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	return &ResponseService{
		completer:      completer,
		translations:   translations,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// BuildResponses runs every requested stage. Stage failures are logged and
// leave only that stage's field nil.
func (s *ResponseService) BuildResponses(ctx context.Context, result *TranslationResult, originalText string, opts ResponseOptions) *Responses {
	log := s.logger.WithField("request_id", requestid.FromContext(ctx))
	out := &Responses{}

	if opts.Analyze {
		analysis, err := s.AnalyzeTranslations(ctx, result, originalText)
		metrics.RecordStage("analysis", err)
		if err != nil {
			log.WithError(err).Error("Translation analysis failed")
		} else {
			out.Analysis = &analysis
		}
	}

	if opts.IndividualAnalysis {
		analyses, err := s.AnalyzeIndividually(ctx, result, originalText)
		metrics.RecordStage("individual_analysis", err)
		if err != nil {
			log.WithError(err).Error("Individual analysis failed")
		} else {
			out.IndividualAnalyses = analyses
		}
	}

	if opts.QuestionResponse {
		out.QuestionResponses = s.AskAll(ctx, result)
		metrics.RecordStage("question_response", nil)

		english, err := s.TranslateResponsesToEnglish(ctx, out.QuestionResponses, result.Order)
		metrics.RecordStage("english_sweep", err)
		if err != nil {
			log.WithError(err).Error("Translating responses to English failed")
		} else {
			out.EnglishResponses = english
		}
	}

	return out
}

// AnalyzeTranslations asks for one combined assessment of all translations.
func (s *ResponseService) AnalyzeTranslations(ctx context.Context, result *TranslationResult, originalText string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Original text: %s\n\nTranslations:\n", originalText)
	for _, lang := range result.Order {
		fmt.Fprintf(&b, "%s: %s\n", lang, result.Translations[lang])
	}
	b.WriteString("\nPlease analyze these translations and provide:\n")
	b.WriteString("1. Accuracy assessment\n")
	b.WriteString("2. Cultural nuances\n")
	b.WriteString("3. Any significant differences between translations\n")
	b.WriteString("4. Suggestions for improvement\n")

	return s.completer.Complete(ctx, complete.Request{
		Prompt: b.String(),
		System: analysisSystemPrompt,
	})
}

// AnalyzeIndividually asks for a per-language verdict on meaning, tone and
// emotion in a single JSON completion. Languages the model leaves out are
// simply missing from the result.
func (s *ResponseService) AnalyzeIndividually(ctx context.Context, result *TranslationResult, originalText string) (map[string]string, error) {
	translations := make(map[string]string, len(result.Order))
	for _, lang := range result.Order {
		translations[lang] = result.Translations[lang]
	}
	listing, err := json.MarshalIndent(translations, "", "  ")
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("Analyze whether each of the following translations is accurate. Check:\n")
	b.WriteString("1. Whether the meaning matches the original\n")
	b.WriteString("2. Whether the tone matches\n")
	b.WriteString("3. Whether the emotion is preserved\n")
	b.WriteString("Return a JSON object whose keys are the language codes and whose values are the conclusions.\n\n")
	fmt.Fprintf(&b, "Original (%s): %s\nTranslations:\n%s\n", result.DetectedSourceLang, originalText, listing)

	content, err := s.completer.Complete(ctx, complete.Request{
		Prompt:      b.String(),
		System:      analysisSystemPrompt,
		Format:      complete.FormatJSON,
		Temperature: &individualAnalysisTemperature,
	})
	if err != nil {
		return nil, err
	}
	return parseIndividualAnalyses(content)
}

// parseIndividualAnalyses decodes a JSON object into per-language text.
// Non-string values are kept as compact JSON.
func parseIndividualAnalyses(content string) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, apperr.Wrap(apperr.KindCompletion, "Individual analysis is not a JSON object", err)
	}
	if len(raw) == 0 {
		return nil, apperr.New(apperr.KindCompletion, "Individual analysis is empty")
	}

	out := make(map[string]string, len(raw))
	for lang, value := range raw {
		var text string
		if err := json.Unmarshal(value, &text); err == nil {
			out[lang] = text
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, value); err != nil {
			return nil, apperr.Wrap(apperr.KindCompletion, "Individual analysis is not valid JSON", err)
		}
		out[lang] = compact.String()
	}
	return out, nil
}

// Ask sends text as the only message and returns the completion.
func (s *ResponseService) Ask(ctx context.Context, lang, text string) (string, error) {
	s.logger.WithFields(logrus.Fields{
		"request_id":  requestid.FromContext(ctx),
		"lang":        lang,
		"text_length": len(text),
	}).Info("Sending translation as question")

	return s.completer.Complete(ctx, complete.Request{Prompt: text})
}

// AskAll asks one question per translated language. A failed call stores a
// fallback string for that language and never affects the others. Every
// language in result.Order has an entry, even when ctx ends first.
func (s *ResponseService) AskAll(ctx context.Context, result *TranslationResult) map[string]string {
	log := s.logger.WithField("request_id", requestid.FromContext(ctx))
	responses := make(map[string]string, len(result.Order))
	var mu sync.Mutex

	err := forEach(ctx, s.maxConcurrency, len(result.Order), func(ctx context.Context, i int) error {
		lang := result.Order[i]
		answer, err := s.Ask(ctx, lang, result.Translations[lang])
		if err != nil {
			log.WithError(err).WithField("lang", lang).Error("Failed to get question response")
			metrics.RecordCompletionFallback(translate.MetricLabel(lang))
			answer = FallbackPrefix + err.Error()
		}

		mu.Lock()
		responses[lang] = answer
		mu.Unlock()
		return nil
	})

	// Languages never started because ctx ended still get an entry.
	if err != nil {
		for _, lang := range result.Order {
			if _, ok := responses[lang]; ok {
				continue
			}
			log.WithError(err).WithField("lang", lang).Warn("Question not asked")
			metrics.RecordCompletionFallback(translate.MetricLabel(lang))
			responses[lang] = FallbackPrefix + err.Error()
		}
	}

	return responses
}

// TranslateResponsesToEnglish back-translates every response into English.
// English responses are copied unchanged. Unlike AskAll, a single failure
// fails the whole sweep.
func (s *ResponseService) TranslateResponsesToEnglish(ctx context.Context, responses map[string]string, order []string) (map[string]string, error) {
	if s.translations == nil {
		return nil, errors.New("no translation service configured for English responses")
	}

	langs := orderedKeys(responses, order)
	english := make(map[string]string, len(langs))
	var mu sync.Mutex

	err := forEach(ctx, s.maxConcurrency, len(langs), func(ctx context.Context, i int) error {
		lang := langs[i]
		text := responses[lang]
		if translate.IsEnglish(lang) {
			mu.Lock()
			english[lang] = text
			mu.Unlock()
			return nil
		}

		result, err := s.translations.TranslateToMultiple(ctx, text, []string{translate.EnglishTarget})
		if err != nil {
			return fmt.Errorf("translating %s response: %w", lang, err)
		}

		mu.Lock()
		english[lang] = result.Translations[translate.EnglishTarget]
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return english, nil
}

// orderedKeys returns the keys of m following order first, then any
// remaining keys in map order.
func orderedKeys(m map[string]string, order []string) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range order {
		if _, ok := m[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	for k := range m {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}
