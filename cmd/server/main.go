package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dasmlab/multiling/pkg/complete"
	"github.com/dasmlab/multiling/pkg/config"
	"github.com/dasmlab/multiling/pkg/server"
	"github.com/dasmlab/multiling/pkg/service"
	"github.com/dasmlab/multiling/pkg/translate"
)

// Flags override the matching environment settings when given.
var (
	envFile = flag.String("env-file", ".env", "Optional dotenv file loaded before reading the environment")

	httpAddr = flag.String("http-addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	grpcPort = flag.Int("port", 0, "gRPC server port, 0 disables gRPC (overrides GRPC_PORT)")

	mtEngine  = flag.String("mt-engine", "", "Translation engine: deepl or libretranslate (overrides MT_ENGINE)")
	mtURL     = flag.String("mt-url", "", "Base URL for the translation engine API")
	llmEngine = flag.String("llm-engine", "", "Completion engine: openai or ollama (overrides LLM_ENGINE)")

	maxConcurrency = flag.Int("max-concurrency", 0, "Maximum in-flight remote calls per stage (overrides MAX_CONCURRENCY)")

	logLevel  = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	logFormat = flag.String("log-format", "", "Log format: text or json (overrides LOG_FORMAT)")
)

func main() {
	flag.Parse()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	if strings.EqualFold(cfg.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"http_addr":       cfg.HTTPAddr,
		"grpc_port":       cfg.GRPCPort,
		"mt_engine":       cfg.TranslationEngine,
		"llm_engine":      cfg.CompletionEngine,
		"max_concurrency": cfg.MaxConcurrency,
		"remote_timeout":  cfg.RemoteTimeout.String(),
		"log_level":       level.String(),
	}).Info("Starting multiling server")

	translator, err := newTranslator(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create translator")
	}
	if err := translator.CheckCredentials(); err != nil {
		logger.WithError(err).Warn("Translation requests will fail until the API key is configured")
	}

	// Verify translator is reachable
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	logger.Info("Checking translator health...")
	if err := translator.CheckHealth(ctx); err != nil {
		logger.WithError(err).Warn("Translator health check failed, but continuing anyway")
	} else {
		logger.Info("Translator health check passed")
	}
	cancel()

	completer, err := newCompleter(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create completer")
	}

	svc := service.NewAutoTranslateService(translator, completer, cfg.MaxConcurrency, logger)

	errChan := make(chan error, 2)

	httpServer := server.NewHTTPServer(svc, logger, cfg.HTTPAddr, cfg.CORSAllowedOrigins)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	var grpcServer *grpc.Server
	var healthServer *health.Server
	if cfg.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			logger.WithError(err).WithField("port", cfg.GRPCPort).Fatal("Failed to listen on port")
		}

		grpcServer, healthServer = server.NewGRPCServer(svc, logger)
		go func() {
			logger.WithField("port", cfg.GRPCPort).Info("gRPC server listening")
			if err := grpcServer.Serve(lis); err != nil {
				errChan <- fmt.Errorf("failed to serve gRPC: %w", err)
			}
		}()
	} else {
		logger.Info("gRPC server disabled")
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.WithError(err).Fatal("Server error")
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Received signal, shutting down gracefully...")
	}

	ctx, cancel = context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if healthServer != nil {
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown incomplete")
	}

	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-ctx.Done():
			logger.Warn("Graceful shutdown timeout, forcing stop...")
			grpcServer.Stop()
		}
	}

	logger.Info("Server stopped gracefully")
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			cfg.HTTPAddr = *httpAddr
		case "port":
			cfg.GRPCPort = *grpcPort
		case "mt-engine":
			cfg.TranslationEngine = *mtEngine
		case "mt-url":
			if strings.EqualFold(cfg.TranslationEngine, string(translate.EngineLibreTranslate)) {
				cfg.LibreTranslateURL = *mtURL
			} else {
				cfg.DeepLAPIURL = *mtURL
			}
		case "llm-engine":
			cfg.CompletionEngine = *llmEngine
		case "max-concurrency":
			cfg.MaxConcurrency = *maxConcurrency
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})
}

func newTranslator(cfg config.Config, logger *logrus.Logger) (translate.Translator, error) {
	engine, err := translate.ParseEngineType(cfg.TranslationEngine)
	if err != nil {
		return nil, err
	}

	tcfg := translate.Config{
		Engine:  engine,
		Timeout: cfg.RemoteTimeout,
		Logger:  logger,
	}
	switch engine {
	case translate.EngineLibreTranslate:
		tcfg.BaseURL = cfg.LibreTranslateURL
		tcfg.APIKey = cfg.LibreTranslateAPIKey
	default:
		tcfg.BaseURL = cfg.DeepLAPIURL
		tcfg.APIKey = cfg.DeepLAPIKey
	}
	return translate.NewTranslator(tcfg)
}

func newCompleter(cfg config.Config, logger *logrus.Logger) (complete.Completer, error) {
	engine, err := complete.ParseEngineType(cfg.CompletionEngine)
	if err != nil {
		return nil, err
	}

	ccfg := complete.Config{
		Engine:  engine,
		Timeout: cfg.RemoteTimeout,
		Logger:  logger,
	}
	switch engine {
	case complete.EngineOllama:
		ccfg.BaseURL = cfg.OllamaURL
		ccfg.Model = cfg.OllamaModel
	default:
		ccfg.APIKey = cfg.OpenAIAPIKey
		ccfg.BaseURL = cfg.OpenAIBaseURL
		ccfg.Model = cfg.OpenAIModel
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("OPENAI_API_KEY is not set, completion stages will fail")
		}
	}
	return complete.NewCompleter(ccfg)
}
