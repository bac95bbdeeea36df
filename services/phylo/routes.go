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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianPhylo/services/phylo/telemetry"
)

// RegisterRoutes registers all phylo routes with the router.
//
// Description:
//
//	Registers all /v1/phylo/* endpoints with the given Gin router group.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	h - The handlers instance
//
// Endpoints:
//
//	GET  /v1/phylo/health - Service health
//	POST /v1/phylo/datasets - Ingest and publish a dataset
//	GET  /v1/phylo/datasets - List stored snapshots
//	POST /v1/phylo/datasets/restore - Republish the last snapshot
//	GET  /v1/phylo/dataset - Current dataset summary and indices
//	GET  /v1/phylo/nodes - Find a node by name or branch label
//	GET  /v1/phylo/nodes/:idx - Node by array index
//	GET  /v1/phylo/nodes/:idx/path - Path from a node to the root
//	GET  /v1/phylo/tips - All tips in array order
//	GET  /v1/phylo/labels - Available branch label categories
//	GET  /v1/phylo/mutations - Observed mutation counts
//	GET  /v1/phylo/vaccines - Vaccine nodes
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	p := rg.Group("/phylo")
	{
		p.GET("/health", h.HandleHealth)

		p.POST("/datasets", h.RateLimitUploads(), h.HandleLoadDataset)
		p.GET("/datasets", h.HandleListSnapshots)
		p.POST("/datasets/restore", h.HandleRestore)
		p.GET("/dataset", h.HandleGetDataset)

		p.GET("/nodes", h.HandleFindNode)
		p.GET("/nodes/:idx", h.HandleGetNode)
		p.GET("/nodes/:idx/path", h.HandleGetPath)

		p.GET("/tips", h.HandleGetTips)
		p.GET("/labels", h.HandleGetLabels)
		p.GET("/mutations", h.HandleGetMutations)
		p.GET("/vaccines", h.HandleGetVaccines)
	}
}

// NewRouter builds the complete HTTP router: recovery, tracing, request
// IDs, the /v1/phylo API and /metrics.
func NewRouter(h *Handlers, debug bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-phylo"))
	router.Use(RequestID())
	if debug {
		router.Use(gin.Logger())
	}

	metrics := telemetry.MetricsHandler()
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metrics))

	RegisterRoutes(router.Group("/v1"), h)
	return router
}
