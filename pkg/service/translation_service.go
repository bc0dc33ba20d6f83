package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/multiling/pkg/apperr"
	"github.com/dasmlab/multiling/pkg/metrics"
	"github.com/dasmlab/multiling/pkg/requestid"
	"github.com/dasmlab/multiling/pkg/translate"
)

// TranslationResult holds one translation per distinct requested target.
type TranslationResult struct {
	// Translations is keyed by the target code exactly as requested.
	Translations map[string]string
	// Order lists the keys of Translations in first-requested order.
	Order []string
	// DetectedSourceLang is the normalized detected source language.
	DetectedSourceLang string
}

// TranslationService detects the source language of a text and fans it out
// to the requested target languages.
type TranslationService struct {
	translator     translate.Translator
	maxConcurrency int
	logger         *logrus.Logger
}

// NewTranslationService creates a new TranslationService.
// maxConcurrency bounds in-flight translate calls; values below 1 mean 1.
func NewTranslationService(translator translate.Translator, maxConcurrency int, logger *logrus.Logger) *TranslationService {
	if logger == nil {
		logger = logrus.New()
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	return &TranslationService{
		translator:     translator,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// TranslateToMultiple translates text into every target in targets.
// A target sharing the detected source's base code gets the original text
// without a remote call. Any failure aborts the whole call.
func (s *TranslationService) TranslateToMultiple(ctx context.Context, text string, targets []string) (result *TranslationResult, err error) {
	log := s.logger.WithFields(logrus.Fields{
		"request_id":   requestid.FromContext(ctx),
		"text_length":  len(text),
		"target_count": len(targets),
	})
	startTime := time.Now()
	defer func() {
		metrics.RecordStage("translation", err)
	}()

	if err := s.translator.CheckCredentials(); err != nil {
		log.WithError(err).Error("Translation service is not configured")
		return nil, apperr.Wrap(apperr.KindTranslation, "Translation service is not configured", err)
	}

	detected, err := s.translator.DetectLanguage(ctx, text)
	if err != nil {
		log.WithError(err).Error("Language detection failed")
		return nil, apperr.Wrap(apperr.KindTranslation, "Language detection failed", err)
	}
	source := translate.Normalize(detected)
	log = log.WithFields(logrus.Fields{
		"detected_lang": detected,
		"source_lang":   source,
	})
	log.Info("Source language detected")

	values := make([]string, len(targets))
	err = forEach(ctx, s.maxConcurrency, len(targets), func(ctx context.Context, i int) error {
		target := targets[i]
		if translate.SameLanguage(target, source) {
			metrics.RecordSkippedTranslation()
			values[i] = text
			log.WithField("target_lang", target).Debug("Target matches source language, keeping original text")
			return nil
		}

		// The detected code is not passed as source_lang: after normalization
		// it may name a different language than the one DeepL reported.
		translated, err := s.translator.Translate(ctx, text, translate.TargetParam(target), "")
		if err != nil {
			return apperr.Wrap(apperr.KindTranslation, fmt.Sprintf("Translation to %s failed", target), err)
		}
		values[i] = translated
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.Wrap(apperr.KindTranslation, "Translation aborted", err)
		}
		log.WithError(err).Error("Translation failed")
		return nil, err
	}

	result = &TranslationResult{
		Translations:       make(map[string]string, len(targets)),
		Order:              make([]string, 0, len(targets)),
		DetectedSourceLang: source,
	}
	for i, target := range targets {
		if _, seen := result.Translations[target]; !seen {
			result.Order = append(result.Order, target)
		}
		result.Translations[target] = values[i]
	}

	log.WithFields(logrus.Fields{
		"languages":   len(result.Order),
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Translations completed")

	return result, nil
}
