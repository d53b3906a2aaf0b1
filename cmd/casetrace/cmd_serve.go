package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/casetrace/casetrace/internal/ai"
	"github.com/casetrace/casetrace/internal/casedir"
	"github.com/casetrace/casetrace/internal/server"
	"github.com/casetrace/casetrace/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("casetrace starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	mgr, err := casedir.NewManager(cfg.WorkspaceDir, logger)
	if err != nil {
		return fmt.Errorf("workspace: %w", err)
	}

	client := ai.NewClient(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaTimeout, logger)
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		logger.Warn("model backend unreachable, extraction and review endpoints will fail until it comes up",
			"url", cfg.OllamaURL, "error", err)
	} else {
		logger.Info("model backend ready", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
	}
	pingCancel()

	srv := server.New(server.ServerConfig{
		Manager:             mgr,
		Client:              client,
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		MaxUploadBytes:      cfg.MaxUploadBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("casetrace shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("casetrace stopped")
	return nil
}
