package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/multiling/pkg/apperr"
)

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "no key", apperr.New(apperr.KindConfiguration, "no key").Error())

	cause := errors.New("connection refused")
	err := apperr.Wrap(apperr.KindTranslation, "Translation request failed", cause)
	assert.Equal(t, "Translation request failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestKindOfReturnsOutermost(t *testing.T) {
	detection := apperr.New(apperr.KindLanguageDetection, "missing detected_source_language")
	translation := apperr.Wrap(apperr.KindTranslation, "Language detection failed", detection)
	wrapped := fmt.Errorf("auto translate: %w", translation)

	assert.Equal(t, apperr.KindTranslation, apperr.KindOf(wrapped))
	assert.Equal(t, apperr.Kind(""), apperr.KindOf(errors.New("plain")))
}

func TestIsWalksChain(t *testing.T) {
	detection := apperr.New(apperr.KindLanguageDetection, "boom")
	translation := apperr.Wrap(apperr.KindTranslation, "Language detection failed", detection)

	assert.True(t, apperr.Is(translation, apperr.KindTranslation))
	assert.True(t, apperr.Is(translation, apperr.KindLanguageDetection))
	assert.False(t, apperr.Is(translation, apperr.KindCompletion))
	assert.False(t, apperr.Is(nil, apperr.KindCompletion))

	var target *apperr.Error
	require.ErrorAs(t, translation, &target)
	assert.Equal(t, "Language detection failed", target.Message)
}

func TestNewf(t *testing.T) {
	err := apperr.Newf(apperr.KindInvalidRequest, "unsupported engine %q", "x")
	assert.Equal(t, `unsupported engine "x"`, err.Error())
	assert.Nil(t, err.Unwrap())
}
