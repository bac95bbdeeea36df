// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxNodes is the default maximum number of nodes in one dataset.
const DefaultMaxNodes = 5_000_000

// IngestOptions configures Ingest.
type IngestOptions struct {
	// Logger receives sanitizer warnings and a completion line.
	// Default: slog.Default()
	Logger *slog.Logger

	// Rand drives name generation. Default: randomly seeded.
	Rand *rand.Rand

	// MaxNodes caps the flattened array, synthetic root included.
	// Zero or negative disables the limit. Default: 5,000,000
	MaxNodes int
}

// DefaultIngestOptions returns the default ingestion configuration.
func DefaultIngestOptions() IngestOptions {
	return IngestOptions{MaxNodes: DefaultMaxNodes}
}

// IngestOption is a functional option for configuring Ingest.
type IngestOption func(*IngestOptions)

// WithLogger sets the logger used during ingestion.
func WithLogger(l *slog.Logger) IngestOption {
	return func(o *IngestOptions) {
		o.Logger = l
	}
}

// WithRand sets the random source used for generated names.
func WithRand(r *rand.Rand) IngestOption {
	return func(o *IngestOptions) {
		o.Rand = r
	}
}

// WithMaxNodes sets the maximum dataset size.
func WithMaxNodes(n int) IngestOption {
	return func(o *IngestOptions) {
		o.MaxNodes = n
	}
}

// DecodeDocuments decodes a JSON payload holding either one tree document or
// an array of them.
func DecodeDocuments(data []byte) ([]*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}

	switch trimmed[0] {
	case '[':
		var docs []*Document
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return docs, nil
	case '{':
		var doc Document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return []*Document{&doc}, nil
	default:
		return nil, fmt.Errorf("%w: expected a JSON object or array", ErrInvalidDocument)
	}
}

// Ingest converts input trees into a Dataset.
//
// Description:
//
//	Runs the full pipeline: merge trees under the synthetic root, compute
//	tip counts, sanitize names and assign array positions, record parent
//	info, classify vaccine nodes and build the label and mutation indices.
//	Either the whole pipeline succeeds or an error is returned and nothing
//	is published.
//
// Inputs:
//   - ctx: Used for tracing only. Ingestion is not cancellable.
//   - trees: One or more tree roots, in display order.
//   - opts: Optional configuration.
//
// Outputs:
//   - *Dataset: The ingested dataset.
//   - error: ErrNoTrees, ErrInvalidDocument, ErrStructure or ErrTooManyNodes.
//
// Thread Safety: Safe for concurrent use; input documents are not modified.
func Ingest(ctx context.Context, trees []*Document, opts ...IngestOption) (*Dataset, error) {
	options := DefaultIngestOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	start := time.Now()
	ctx, span := startIngestSpan(ctx, len(trees))
	defer span.End()

	ds, err := ingest(ctx, trees, options)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordIngestMetrics(ctx, duration, 0, nil, false)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("phylo.node_count", len(ds.Nodes)),
		attribute.Int("phylo.tip_count", ds.Root().FullTipCount),
		attribute.Int("phylo.warning_count", len(ds.Warnings)),
	)
	recordIngestMetrics(ctx, duration, len(ds.Nodes), ds.Warnings, true)

	options.Logger.Debug("trees ingested",
		slog.Int("trees", len(trees)),
		slog.Int("nodes", len(ds.Nodes)),
		slog.Int("warnings", len(ds.Warnings)),
		slog.Duration("duration", duration))

	return ds, nil
}

func ingest(ctx context.Context, trees []*Document, options IngestOptions) (*Dataset, error) {
	_, span := startStageSpan(ctx, "build_forest")
	forest, err := BuildForest(trees)
	span.End()
	if err != nil {
		return nil, err
	}
	nodes := forest.Nodes

	if options.MaxNodes > 0 && len(nodes) > options.MaxNodes {
		return nil, fmt.Errorf("%w: %d nodes, limit %d", ErrTooManyNodes, len(nodes), options.MaxNodes)
	}

	_, span = startStageSpan(ctx, "derive")
	ComputeTipCounts(nodes)
	warnings := NewSanitizer(options.Rand, options.Logger).Sanitize(nodes)
	for _, n := range nodes {
		n.ParentInfo = ParentInfo{Original: n.Parent}
	}
	vaccines := CollectVaccines(nodes)
	span.End()

	_, span = startStageSpan(ctx, "index")
	defer span.End()

	var (
		g         errgroup.Group
		labels    []string
		mutations map[string]int
		attrKeys  []string
	)
	g.Go(func() error {
		labels = IndexBranchLabels(nodes)
		return nil
	})
	g.Go(func() error {
		mutations = TallyMutations(nodes)
		return nil
	})
	g.Go(func() error {
		attrKeys = IndexNodeAttrKeys(nodes)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return newDataset(nodes, datasetIndices{
		vaccines:  vaccines,
		mutations: mutations,
		labels:    labels,
		attrKeys:  attrKeys,
		offsets:   forest.SubtreeOffsets,
		warnings:  warnings,
	}), nil
}
