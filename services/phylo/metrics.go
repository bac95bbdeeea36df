// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package phylo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	datasetLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phylo_service_dataset_loads_total",
		Help: "Dataset load attempts by source and result",
	}, []string{"source", "result"})

	datasetLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "phylo_service_dataset_load_duration_seconds",
		Help:    "Time to decode, ingest and publish a dataset",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"source"})

	datasetNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "phylo_service_dataset_nodes",
		Help: "Node count of the currently published dataset",
	})

	uploadsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phylo_service_uploads_rate_limited_total",
		Help: "Dataset uploads rejected by the rate limiter",
	})
)
