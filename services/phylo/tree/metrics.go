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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for ingestion.
var (
	tracer = otel.Tracer("aleutian.phylo.tree")
	meter  = otel.Meter("aleutian.phylo.tree")
)

var (
	ingestLatency metric.Float64Histogram
	ingestTotal   metric.Int64Counter
	nodesIngested metric.Int64Histogram
	namesRepaired metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		ingestLatency, err = meter.Float64Histogram(
			"phylo_ingest_duration_seconds",
			metric.WithDescription("Duration of tree ingestion"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		ingestTotal, err = meter.Int64Counter(
			"phylo_ingest_total",
			metric.WithDescription("Total number of ingestion runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesIngested, err = meter.Int64Histogram(
			"phylo_ingest_nodes",
			metric.WithDescription("Number of nodes per ingested dataset"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		namesRepaired, err = meter.Int64Counter(
			"phylo_names_repaired_total",
			metric.WithDescription("Node names generated or deduplicated during ingestion"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordIngestMetrics records metrics for one ingestion run.
func recordIngestMetrics(ctx context.Context, duration time.Duration, nodeCount int, warnings []Warning, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	ingestLatency.Record(ctx, duration.Seconds(), attrs)
	ingestTotal.Add(ctx, 1, attrs)

	if !success {
		return
	}
	nodesIngested.Record(ctx, int64(nodeCount))
	for _, w := range warnings {
		namesRepaired.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", w.Kind.String())))
	}
}

// startIngestSpan creates the span covering one ingestion run.
func startIngestSpan(ctx context.Context, treeCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tree.Ingest",
		trace.WithAttributes(attribute.Int("phylo.tree_count", treeCount)),
	)
}

// startStageSpan creates a child span for one pipeline stage.
func startStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tree.Ingest."+stage)
}
