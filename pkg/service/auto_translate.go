package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/multiling/pkg/apperr"
	"github.com/dasmlab/multiling/pkg/complete"
	"github.com/dasmlab/multiling/pkg/requestid"
	"github.com/dasmlab/multiling/pkg/translate"
)

// AutoTranslateRequest is the body of an auto-translate call.
type AutoTranslateRequest struct {
	Text               string   `json:"text"`
	TargetLangs        []string `json:"target_langs,omitempty"`
	SingleLanguage     string   `json:"single_language,omitempty"`
	Analyze            bool     `json:"analyze"`
	IndividualAnalysis bool     `json:"individual_analysis"`
	QuestionResponse   bool     `json:"question_response"`
}

// AutoTranslateResponse is the result of an auto-translate call. Optional
// fields are omitted when their stage was not requested or failed.
type AutoTranslateResponse struct {
	Translations       map[string]string `json:"translations"`
	DetectedSourceLang string            `json:"detected_source_lang"`
	Analysis           *string           `json:"analysis,omitempty"`
	IndividualAnalyses map[string]string `json:"individual_analyses,omitempty"`
	QuestionResponses  map[string]string `json:"question_responses,omitempty"`
	EnglishResponses   map[string]string `json:"english_responses,omitempty"`
}

// AutoTranslateService is the entry point shared by the HTTP and gRPC
// transports: translation is mandatory, every completion stage is optional.
type AutoTranslateService struct {
	Translator  translate.Translator
	Translation *TranslationService
	Responses   *ResponseService
	Logger      *logrus.Logger
}

// NewAutoTranslateService wires the orchestrators around one translator and
// one completer.
func NewAutoTranslateService(translator translate.Translator, completer complete.Completer, maxConcurrency int, logger *logrus.Logger) *AutoTranslateService {
	if logger == nil {
		logger = logrus.New()
	}

	translation := NewTranslationService(translator, maxConcurrency, logger)
	return &AutoTranslateService{
		Translator:  translator,
		Translation: translation,
		Responses:   NewResponseService(completer, translation, maxConcurrency, logger),
		Logger:      logger,
	}
}

// Validate checks the request and returns the effective target list.
func (r *AutoTranslateRequest) Validate() ([]string, error) {
	if strings.TrimSpace(r.Text) == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "text must not be empty")
	}

	if single := strings.TrimSpace(r.SingleLanguage); single != "" {
		if !translate.IsWellFormedTarget(single) {
			return nil, apperr.Newf(apperr.KindInvalidRequest, "single_language is not a language code: %q", single)
		}
		return []string{single}, nil
	}
	if len(r.TargetLangs) == 0 {
		return append([]string(nil), translate.DefaultTargetLangs...), nil
	}

	targets := make([]string, len(r.TargetLangs))
	for i, t := range r.TargetLangs {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, apperr.Newf(apperr.KindInvalidRequest, "target_langs[%d] is empty", i)
		}
		if !translate.IsWellFormedTarget(t) {
			return nil, apperr.Newf(apperr.KindInvalidRequest, "target_langs[%d] is not a language code: %q", i, t)
		}
		targets[i] = t
	}
	return targets, nil
}

// AutoTranslate detects the language of req.Text, translates it into every
// target and runs the requested completion stages over the translations.
func (s *AutoTranslateService) AutoTranslate(ctx context.Context, req AutoTranslateRequest) (*AutoTranslateResponse, error) {
	log := s.Logger.WithField("request_id", requestid.FromContext(ctx))

	targets, err := req.Validate()
	if err != nil {
		log.WithError(err).Warn("Rejected auto-translate request")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"text_length":         len(req.Text),
		"target_langs":        targets,
		"analyze":             req.Analyze,
		"individual_analysis": req.IndividualAnalysis,
		"question_response":   req.QuestionResponse,
	}).Info("Auto-translate request received")
	startTime := time.Now()

	result, err := s.Translation.TranslateToMultiple(ctx, req.Text, targets)
	if err != nil {
		return nil, err
	}

	responses := s.Responses.BuildResponses(ctx, result, req.Text, ResponseOptions{
		Analyze:            req.Analyze,
		IndividualAnalysis: req.IndividualAnalysis,
		QuestionResponse:   req.QuestionResponse,
	})

	log.WithFields(logrus.Fields{
		"detected_lang": result.DetectedSourceLang,
		"duration_ms":   time.Since(startTime).Milliseconds(),
	}).Info("Auto-translate request completed")

	return &AutoTranslateResponse{
		Translations:       result.Translations,
		DetectedSourceLang: result.DetectedSourceLang,
		Analysis:           responses.Analysis,
		IndividualAnalyses: responses.IndividualAnalyses,
		QuestionResponses:  responses.QuestionResponses,
		EnglishResponses:   responses.EnglishResponses,
	}, nil
}
