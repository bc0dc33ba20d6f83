package complete

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/multiling/pkg/apperr"
)

type generateRequest struct {
	Model  string  `json:"model"`
	Prompt string  `json:"prompt"`
	System *string `json:"system"`
	Stream *bool   `json:"stream"`
}

func newGenerateServer(t *testing.T, check func(generateRequest), reply string, done bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if check != nil {
			check(req)
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"model":    "llama3.1",
			"response": reply,
			"done":     done,
		}))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOllamaClient(t *testing.T, rawURL string, timeout time.Duration) *OllamaClient {
	t.Helper()
	host, err := url.Parse(rawURL)
	require.NoError(t, err)
	return NewOllamaClient(*host, "llama3.1", timeout, quietLogger())
}

func TestOllamaCompleteUserOnly(t *testing.T) {
	srv := newGenerateServer(t, func(req generateRequest) {
		assert.Equal(t, "llama3.1", req.Model)
		assert.Equal(t, "Comment ça va ?", req.Prompt)
		assert.Nil(t, req.System)
		if assert.NotNil(t, req.Stream) {
			assert.False(t, *req.Stream)
		}
	}, "Bonjour!", true)

	c := newTestOllamaClient(t, srv.URL, 0)
	out, err := c.Complete(context.Background(), Request{Prompt: "Comment ça va ?"})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour!", out)
}

func TestOllamaCompleteWithSystem(t *testing.T) {
	srv := newGenerateServer(t, func(req generateRequest) {
		if assert.NotNil(t, req.System) {
			assert.Equal(t, "You are a multilingual translation expert.", *req.System)
		}
		assert.Equal(t, "Analyze", req.Prompt)
	}, "Looks consistent.", true)

	c := newTestOllamaClient(t, srv.URL, 0)
	out, err := c.Complete(context.Background(), Request{
		Prompt: "Analyze",
		System: "You are a multilingual translation expert.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Looks consistent.", out)
}

func TestOllamaCompleteKeepsTextFences(t *testing.T) {
	reply := "Use this:\n```go\nfmt.Println(1)\n```"
	srv := newGenerateServer(t, nil, reply, true)

	c := newTestOllamaClient(t, srv.URL, 0)
	out, err := c.Complete(context.Background(), Request{Prompt: "How do I print in Go?"})
	require.NoError(t, err)
	assert.Equal(t, reply, out)
}

func TestOllamaCompleteJSONStripsFence(t *testing.T) {
	srv := newGenerateServer(t, func(req generateRequest) {
		assert.True(t, strings.HasPrefix(req.Prompt, "Rate each translation"))
		assert.True(t, strings.HasSuffix(req.Prompt, "Respond with a single JSON object and nothing else."))
	}, "```json\n{\"DE\": \"good\"}\n```", true)

	c := newTestOllamaClient(t, srv.URL, 0)
	out, err := c.Complete(context.Background(), Request{Prompt: "Rate each translation", Format: FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, `{"DE": "good"}`, out)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "good", parsed["DE"])
}

func TestOllamaCompleteFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		done  bool
	}{
		{"unfinished", "partial", false},
		{"empty", "", true},
		{"blank", "  \n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newGenerateServer(t, nil, tt.reply, tt.done)

			c := newTestOllamaClient(t, srv.URL, 0)
			_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
			require.Error(t, err)
			assert.Equal(t, apperr.KindCompletion, apperr.KindOf(err))
		})
	}
}

func TestOllamaCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestOllamaClient(t, srv.URL, 0)
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindCompletion, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaCompleteTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestOllamaClient(t, srv.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindCompletion, apperr.KindOf(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```\n", `{"a": 1}`},
		{"  ```JSON\n{\"a\": \"`x`\"}\n```  ", "{\"a\": \"`x`\"}"},
		{"```{\"a\": 1}```", `{"a": 1}`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, stripCodeFence(tt.in), tt.in)
	}
}
