package translate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/multiling/pkg/apperr"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestDeepLDetectLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bonjour", r.PostForm.Get("text"))
		assert.Equal(t, "EN-US", r.PostForm.Get("target_lang"))
		assert.Equal(t, "secret-key", r.PostForm.Get("auth_key"))
		assert.Empty(t, r.PostForm.Get("source_lang"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"translations":[{"text":"Hello","detected_source_language":"FR"}]}`)
	}))
	defer srv.Close()

	c := NewDeepLClient(srv.URL, "secret-key", 0, quietLogger())
	lang, err := c.DetectLanguage(context.Background(), "Bonjour")
	require.NoError(t, err)
	assert.Equal(t, "FR", lang)
}

func TestDeepLDetectLanguageMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"translations":[{"text":"Hello"}]}`)
	}))
	defer srv.Close()

	c := NewDeepLClient(srv.URL, "k", 0, quietLogger())
	_, err := c.DetectLanguage(context.Background(), "Bonjour")
	require.Error(t, err)
	assert.Equal(t, apperr.KindLanguageDetection, apperr.KindOf(err))
}

func TestDeepLDetectLanguageNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", 456)
	}))
	defer srv.Close()

	c := NewDeepLClient(srv.URL, "k", 0, quietLogger())
	_, err := c.DetectLanguage(context.Background(), "Bonjour")
	require.Error(t, err)
	assert.Equal(t, apperr.KindLanguageDetection, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "456")
}

func TestDeepLTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "DE", r.PostForm.Get("target_lang"))
		assert.Equal(t, "EN", r.PostForm.Get("source_lang"))
		io.WriteString(w, `{"translations":[{"text":"Hallo Welt","detected_source_language":"EN"}]}`)
	}))
	defer srv.Close()

	c := NewDeepLClient(srv.URL, "k", 0, quietLogger())
	out, err := c.Translate(context.Background(), "Hello world", "DE", "EN")
	require.NoError(t, err)
	assert.Equal(t, "Hallo Welt", out)
}

func TestDeepLTranslateMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty translations", `{"translations":[]}`},
		{"not json", `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewDeepLClient(srv.URL, "k", 0, quietLogger())
			_, err := c.Translate(context.Background(), "Hello", "DE", "")
			require.Error(t, err)
			assert.Equal(t, apperr.KindTranslation, apperr.KindOf(err))
		})
	}
}

func TestDeepLMissingKeyMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewDeepLClient(srv.URL, "", 0, quietLogger())

	err := c.CheckCredentials()
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))

	_, err = c.DetectLanguage(context.Background(), "Hello")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	_, err = c.Translate(context.Background(), "Hello", "DE", "")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestDeepLCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/usage", r.URL.Path)
		assert.Equal(t, "DeepL-Auth-Key k", r.Header.Get("Authorization"))
		io.WriteString(w, `{"character_count":1,"character_limit":500000}`)
	}))
	defer srv.Close()

	c := NewDeepLClient(srv.URL+"/v2/translate", "k", 0, quietLogger())
	assert.NoError(t, c.CheckHealth(context.Background()))
}
