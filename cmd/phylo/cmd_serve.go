// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPhylo/services/phylo"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/config"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/storage/badger"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/telemetry"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/watch"
)

var (
	serveConfigPath string
	servePort       int
	serveDataset    string
	serveWatch      bool
	serveDebug      bool
	serveInitConfig bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the current dataset over HTTP",
	Long: `Start the phylo HTTP API.

At startup the dataset file is loaded if one is configured; otherwise the
last snapshot is restored from the store when storage is enabled. With
--watch the dataset is reloaded whenever the file changes. A failed
reload leaves the previous dataset in place.

Flags override values from the config file.

Examples:
  phylo serve --dataset tree.json
  phylo serve --config ~/.aleutian/phylo.yaml --watch
  phylo serve --init-config`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "",
		"Config file (default ~/.aleutian/phylo.yaml when present)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port")
	serveCmd.Flags().StringVar(&serveDataset, "dataset", "", "Dataset file to load at startup")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload the dataset file when it changes")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable gin debug mode and request logging")
	serveCmd.Flags().BoolVar(&serveInitConfig, "init-config", false,
		"Write a default config file and exit")
}

func runServe(cmd *cobra.Command, _ []string) error {
	path, err := resolveConfigPath(serveConfigPath)
	if err != nil {
		return err
	}
	if serveInitConfig {
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		printerFor(cmd).Success("wrote " + path)
		return nil
	}

	cfg, err := loadServeConfig(path, cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging.Level, cfg.Logging.JSON, cfg.Logging.Dir)
	if err != nil {
		return err
	}
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.TraceExporter = cfg.Telemetry.TraceExporter
	telemetryCfg.MetricExporter = cfg.Telemetry.MetricExporter
	telemetryCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	telemetryCfg.SampleRate = cfg.Telemetry.SampleRate
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	svcCfg := phylo.ServiceConfig{
		MaxNodes:  cfg.Ingest.MaxNodes,
		CacheSize: cfg.Ingest.CacheSize,
		Logger:    logger.Slog(),
	}
	if cfg.Storage.Enabled() {
		dbCfg := badger.DefaultConfig(cfg.Storage.Path)
		if cfg.Storage.InMemory {
			dbCfg = badger.InMemoryConfig()
		}
		dbCfg.Logger = logger.Slog().With(slog.String("component", "badger"))
		db, err := badger.Open(dbCfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if svcCfg.Store, err = badger.NewSnapshotStore(db); err != nil {
			return err
		}
	}

	svc, err := phylo.NewService(svcCfg)
	if err != nil {
		return err
	}
	if err := loadInitialDataset(ctx, svc, cfg.Dataset, logger.Slog()); err != nil {
		return err
	}

	if cfg.Dataset.Watch {
		w, err := watch.New(cfg.Dataset.Path, func(ctx context.Context, path string) {
			if _, err := svc.LoadFile(ctx, cfg.Dataset.Name, path); err != nil {
				logger.Error("dataset reload failed; keeping previous dataset", "path", path, "error", err)
			}
		}, watch.Options{Debounce: cfg.Dataset.Debounce, Logger: logger.Slog()})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch %s: %w", cfg.Dataset.Path, err)
		}
		defer w.Stop()
		logger.Info("watching dataset file", "path", w.Path())
	}

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers := phylo.NewHandlers(svc, phylo.HandlerOptions{
		UploadRate:   cfg.Server.UploadRate,
		UploadBurst:  cfg.Server.UploadBurst,
		MaxBodyBytes: int64(cfg.Server.MaxBodyMB) << 20,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           phylo.NewRouter(handlers, cfg.Server.Debug),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting Aleutian Phylo server", "address", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down Aleutian Phylo server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// resolveConfigPath returns the explicit path, or the default path.
func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return config.DefaultPath()
}

// loadServeConfig loads path, falling back to defaults when the default
// file is absent, and applies flags the user actually set.
func loadServeConfig(path string, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Load("")
	}
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = servePort
	}
	if flags.Changed("dataset") {
		cfg.Dataset.Path = serveDataset
	}
	if flags.Changed("watch") {
		cfg.Dataset.Watch = serveWatch
	}
	if flags.Changed("debug") {
		cfg.Server.Debug = serveDebug
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// loadInitialDataset loads the configured file, or restores the last
// snapshot when no file is configured.
func loadInitialDataset(ctx context.Context, svc *phylo.Service, ds config.DatasetConfig, logger *slog.Logger) error {
	if ds.Path != "" {
		info, err := svc.LoadFile(ctx, ds.Name, ds.Path)
		if err != nil {
			return fmt.Errorf("load dataset: %w", err)
		}
		logger.Info("dataset loaded", "name", info.Name, "nodes", info.Summary.Nodes)
		return nil
	}

	info, err := svc.Restore(ctx)
	switch {
	case err == nil:
		logger.Info("dataset restored from snapshot", "name", info.Name, "nodes", info.Summary.Nodes)
	case errors.Is(err, phylo.ErrStoreDisabled), errors.Is(err, badger.ErrSnapshotNotFound):
		logger.Info("no dataset loaded; waiting for upload")
	default:
		return fmt.Errorf("restore dataset: %w", err)
	}
	return nil
}
