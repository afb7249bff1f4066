// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command aegis starts the LLM security gateway.
//
// The gateway accepts OpenAI-style chat-completion requests, runs each
// message through the filter pipeline (PII detection, prompt-injection
// detection, redaction), and forwards clean traffic to the configured
// upstream provider, streaming included.
//
// Usage:
//
//	go run ./cmd/aegis serve
//	AEGIS_PORT=9000 go run ./cmd/aegis serve
//	go run ./cmd/aegis serve --config ./aegis.config.yaml
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/health
//
//	# Proxied completion
//	curl -X POST http://localhost:8080/v1/chat/completions \
//	  -H "Content-Type: application/json" \
//	  -H "Authorization: Bearer $OPENAI_API_KEY" \
//	  -d '{"model": "gpt-4o-mini", "messages": [{"role": "user", "content": "Hello"}]}'
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/aegislabs/aegisproxy/services/gateway"
	"github.com/aegislabs/aegisproxy/services/gateway/config"
	"github.com/aegislabs/aegisproxy/services/gateway/filters"
	"github.com/aegislabs/aegisproxy/services/gateway/filters/injection"
	"github.com/aegislabs/aegisproxy/services/gateway/filters/pii"
	"github.com/aegislabs/aegisproxy/services/gateway/filters/redaction"
	"github.com/aegislabs/aegisproxy/services/gateway/proxy"
	"github.com/aegislabs/aegisproxy/services/gateway/proxy/providers"
	"github.com/aegislabs/aegisproxy/services/gateway/telemetry"
)

// version is stamped at build time via -ldflags.
var version = "0.3.0-dev"

// configPath holds the --config flag value for the serve command.
var configPath string

func main() {
	root := &cobra.Command{
		Use:   "aegis",
		Short: "LLM security gateway",
		Long:  "Aegis intercepts OpenAI-style chat requests, filters PII and prompt injections, and proxies clean traffic upstream.",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to tunables YAML (default aegis.config.yaml)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version)
		},
	}

	root.AddCommand(serveCmd, versionCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runServe wires the process: config, logging, filters, proxy, routes,
// and the serving loop with graceful shutdown.
func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	telemetry.InitMetrics(version)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	pipe := filters.NewPipeline(logger)
	pipe.Register(pii.NewFilter(pii.Config{
		Threshold: cfg.Filters.PIIThreshold,
		Enabled:   cfg.Filters.PIIEnabled,
	}))
	pipe.Register(injection.NewFilter(injection.Config{
		Threshold:        cfg.Filters.InjectionThreshold,
		Action:           injection.Action(cfg.Filters.InjectionAction),
		CombinedWeights:  cfg.Filters.CombinedWeights,
		HeuristicWeights: cfg.Filters.HeuristicWeights,
		Enabled:          cfg.Filters.InjectionEnabled,
	}))
	redactor, err := redaction.NewFilter(redaction.Config{
		Mode:    cfg.Filters.RedactionMode,
		Enabled: cfg.Filters.RedactionEnabled,
	})
	if err != nil {
		return fmt.Errorf("building redaction filter: %w", err)
	}
	pipe.Register(redactor)

	prx := proxy.NewHandler(providers.NewFactory(providers.Credentials{
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiBaseURL: cfg.GeminiBaseURL,
	}))
	defer func() {
		if err := prx.Close(); err != nil {
			logger.Warn("closing providers", slog.String("error", err.Error()))
		}
	}()

	stats := telemetry.NewStatsStore(cfg.Filters.InjectionThreshold)
	handlers := gateway.NewHandlers(cfg, pipe, prx, stats, logger, version)
	router := gateway.NewRouter(cfg, handlers)

	apiServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting gateway", slog.String("address", apiServer.Addr), slog.String("version", version))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr(),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		group.Go(func() error {
			logger.Info("starting metrics endpoint", slog.String("address", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api shutdown", slog.String("error", err.Error()))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics shutdown", slog.String("error", err.Error()))
			}
		}
		return nil
	})

	return group.Wait()
}

// newLogger builds the process logger from config.
func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
