package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/multiling/pkg/requestid"
	"github.com/dasmlab/multiling/pkg/service"
	"github.com/dasmlab/multiling/pkg/translate"
)

const (
	maxBodyBytes      = 1 << 20
	deepHealthTimeout = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// HTTPServer serves the auto-translate API, health checks and metrics.
type HTTPServer struct {
	service     *service.AutoTranslateService
	logger      *logrus.Logger
	addr        string
	corsOrigins []string
	srv         *http.Server
}

// NewHTTPServer creates a new HTTP server listening on addr.
func NewHTTPServer(svc *service.AutoTranslateService, logger *logrus.Logger, addr string, corsOrigins []string) *HTTPServer {
	if logger == nil {
		logger = logrus.New()
	}

	s := &HTTPServer{
		service:     svc,
		logger:      logger,
		addr:        addr,
		corsOrigins: corsOrigins,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the router with all middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(s.corsOrigins))

	r.Post("/api/translate/auto", s.handleAutoTranslate)
	r.Get("/api/languages", s.handleLanguages)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return r
}

// Start listens and serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"addr":         s.addr,
		"cors_origins": s.corsOrigins,
	}).Info("Starting HTTP server")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) handleAutoTranslate(w http.ResponseWriter, r *http.Request) {
	var req service.AutoTranslateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	resp, err := s.service.AutoTranslate(r.Context(), req)
	if err != nil {
		writeError(w, HTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// languagesResponse lists the codes accepted by the service.
type languagesResponse struct {
	SupportedSourceLangs []string `json:"supported_source_langs"`
	DefaultTargetLangs   []string `json:"default_target_langs"`
}

func (s *HTTPServer) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, languagesResponse{
		SupportedSourceLangs: translate.SupportedSourceLangs(),
		DefaultTargetLangs:   translate.DefaultTargetLangs,
	})
}

// handleHealth reports liveness. With ?deep=1 it also checks the
// translation backend.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("deep") == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), deepHealthTimeout)
	defer cancel()

	if err := s.service.Translator.CheckHealth(ctx); err != nil {
		s.logger.WithError(err).Warn("Translator health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
