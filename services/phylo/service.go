// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package phylo serves ingested phylogenetic datasets.
//
// A Service holds exactly one current dataset. Loading new input runs the
// full ingestion pipeline off to the side and swaps the result in with a
// single atomic store, so readers see either the old dataset or the new
// one, never a mixture.
package phylo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianPhylo/pkg/validation"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/storage/badger"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/tree"
)

// ServiceVersion is the phylo service version.
const ServiceVersion = "0.1.0"

const (
	sourceUpload   = "upload"
	sourceFile     = "file"
	sourceSnapshot = "snapshot"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// MaxNodes caps dataset size. 0 disables the cap.
	MaxNodes int

	// CacheSize is how many ingested datasets are kept by input digest.
	CacheSize int

	// Store persists raw input for Restore. Nil disables snapshots.
	Store *badger.SnapshotStore

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// DefaultServiceConfig returns a configuration without a store.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxNodes:  tree.DefaultMaxNodes,
		CacheSize: 8,
	}
}

type published struct {
	info    DatasetInfo
	dataset *tree.Dataset
}

// Service owns the current dataset.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	cfg     ServiceConfig
	logger  *slog.Logger
	current atomic.Pointer[published]
	cache   *lru.Cache[string, *tree.Dataset]
	loads   singleflight.Group
}

// NewService creates a service with no dataset loaded.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cache, err := lru.New[string, *tree.Dataset](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create ingest cache: %w", err)
	}
	return &Service{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "phylo_service")),
		cache:  cache,
	}, nil
}

// Load ingests data and publishes it under name.
//
// Description:
//
//	Decodes one tree document or an array of them, ingests the forest and
//	atomically replaces the current dataset. Input whose digest matches a
//	recent ingestion reuses that dataset. With a store configured, the raw
//	bytes are snapshotted first and a snapshot failure aborts the load.
//
// Outputs:
//
//	DatasetInfo - Description of the published dataset.
//	error - ErrInvalidName, a tree ingestion error, or ErrSnapshotFailed.
//	        The current dataset is unchanged on any error.
func (s *Service) Load(ctx context.Context, name string, data []byte) (DatasetInfo, error) {
	return s.load(ctx, sourceUpload, name, data)
}

// LoadFile reads path and loads it. An empty name is derived from the
// file name. Concurrent loads of the same path share one ingestion.
func (s *Service) LoadFile(ctx context.Context, name, path string) (DatasetInfo, error) {
	if name == "" {
		name = DatasetNameFromPath(path)
	}
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}

	v, err, shared := s.loads.Do(key, func() (interface{}, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			datasetLoads.WithLabelValues(sourceFile, "error").Inc()
			return DatasetInfo{}, fmt.Errorf("read dataset %s: %w", path, err)
		}
		return s.load(ctx, sourceFile, name, data)
	})
	if shared {
		s.logger.Debug("dataset file load shared", slog.String("path", path))
	}
	if err != nil {
		return DatasetInfo{}, err
	}
	info, ok := v.(DatasetInfo)
	if !ok {
		return DatasetInfo{}, fmt.Errorf("unexpected type from singleflight group 'loads': got %T", v)
	}
	return info, nil
}

// Restore reloads the most recently saved snapshot.
func (s *Service) Restore(ctx context.Context) (DatasetInfo, error) {
	if s.cfg.Store == nil {
		return DatasetInfo{}, ErrStoreDisabled
	}
	name, err := s.cfg.Store.Current(ctx)
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("restore: %w", err)
	}
	_, raw, err := s.cfg.Store.Load(ctx, name)
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("restore %s: %w", name, err)
	}
	return s.load(ctx, sourceSnapshot, name, raw)
}

// Snapshots lists stored snapshots and the current snapshot name.
func (s *Service) Snapshots(ctx context.Context) ([]badger.Snapshot, string, error) {
	if s.cfg.Store == nil {
		return nil, "", ErrStoreDisabled
	}
	list, err := s.cfg.Store.List(ctx)
	if err != nil {
		return nil, "", err
	}
	current, err := s.cfg.Store.Current(ctx)
	if err != nil && !errors.Is(err, badger.ErrSnapshotNotFound) {
		return nil, "", err
	}
	return list, current, nil
}

// Current returns the published dataset.
func (s *Service) Current() (DatasetInfo, *tree.Dataset, error) {
	p := s.current.Load()
	if p == nil {
		return DatasetInfo{}, nil, ErrNoDataset
	}
	return p.info, p.dataset, nil
}

func (s *Service) load(ctx context.Context, source, name string, data []byte) (DatasetInfo, error) {
	start := time.Now()
	logger := s.logger.With(slog.String("dataset", name), slog.String("source", source))

	info, err := s.publish(ctx, source, name, data)
	datasetLoadDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		datasetLoads.WithLabelValues(source, "error").Inc()
		logger.Warn("dataset load failed", slog.String("error", err.Error()))
		return DatasetInfo{}, err
	}

	result := "ok"
	if info.Cached {
		result = "cached"
	}
	datasetLoads.WithLabelValues(source, result).Inc()
	datasetNodes.Set(float64(info.Summary.Nodes))
	logger.Info("dataset published",
		slog.String("id", info.ID),
		slog.Int("nodes", info.Summary.Nodes),
		slog.Int("tips", info.Summary.Tips),
		slog.Bool("cached", info.Cached),
		slog.Duration("duration", time.Since(start)))
	return info, nil
}

func (s *Service) publish(ctx context.Context, source, name string, data []byte) (DatasetInfo, error) {
	if err := validation.ValidateDatasetName(name); err != nil {
		return DatasetInfo{}, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	ds, cached := s.cache.Get(digest)
	if !cached {
		docs, err := tree.DecodeDocuments(data)
		if err != nil {
			return DatasetInfo{}, err
		}
		ds, err = tree.Ingest(ctx, docs,
			tree.WithLogger(s.logger.With(slog.String("dataset", name))),
			tree.WithMaxNodes(s.cfg.MaxNodes))
		if err != nil {
			return DatasetInfo{}, err
		}
		s.cache.Add(digest, ds)
	}

	info := DatasetInfo{
		ID:       uuid.NewString(),
		Name:     name,
		SHA256:   digest,
		Size:     len(data),
		LoadedAt: time.Now().UTC(),
		Cached:   cached,
		Summary:  ds.Summary(),
	}

	if s.cfg.Store != nil && source != sourceSnapshot {
		meta := badger.Snapshot{
			Name:    name,
			ID:      info.ID,
			SHA256:  digest,
			Size:    len(data),
			Nodes:   info.Summary.Nodes,
			SavedAt: info.LoadedAt,
		}
		if err := s.cfg.Store.Save(ctx, meta, data); err != nil {
			return DatasetInfo{}, fmt.Errorf("%w: %v", ErrSnapshotFailed, err)
		}
	}

	s.current.Store(&published{info: info, dataset: ds})
	return info, nil
}

// DatasetNameFromPath derives a dataset name from a file name: the base
// name without extension, with characters outside [A-Za-z0-9._-]
// replaced by '-'.
func DatasetNameFromPath(path string) string {
	base := filepath.Base(path)
	return validation.SanitizeDatasetName(strings.TrimSuffix(base, filepath.Ext(base)), "dataset")
}
