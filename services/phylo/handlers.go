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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianPhylo/pkg/validation"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/storage/badger"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/tree"
)

// HandlerOptions configures Handlers.
type HandlerOptions struct {
	// UploadRate is the sustained dataset uploads allowed per second.
	// 0 disables rate limiting.
	UploadRate float64

	// UploadBurst is the number of uploads allowed at once.
	UploadBurst int

	// MaxBodyBytes caps upload request bodies. 0 disables the cap.
	MaxBodyBytes int64
}

// Handlers contains the HTTP handlers for the phylo service.
type Handlers struct {
	svc          *Service
	limiter      *rate.Limiter
	maxBodyBytes int64
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service, opts HandlerOptions) *Handlers {
	h := &Handlers{svc: svc, maxBodyBytes: opts.MaxBodyBytes}
	if opts.UploadRate > 0 {
		burst := opts.UploadBurst
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.UploadRate), burst)
	}
	return h
}

// HandleHealth handles GET /v1/phylo/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	_, _, err := h.svc.Current()
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       ServiceVersion,
		DatasetLoaded: err == nil,
	})
}

// HandleLoadDataset handles POST /v1/phylo/datasets.
//
// Description:
//
//	Ingests the trees in the request body and publishes them as the
//	current dataset.
//
// Request Body:
//
//	LoadRequest
//
// Response:
//
//	201 Created: DatasetInfo
//	400 Bad Request: Malformed body, invalid name or invalid document
//	413 Request Entity Too Large: Body or node count over limit
//	422 Unprocessable Entity: Shared subtree or cycle
//	500 Internal Server Error: Snapshot failure
func (h *Handlers) HandleLoadDataset(c *gin.Context) {
	logger := slog.With("request_id", getRequestID(c), "handler", "HandleLoadDataset")

	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: "Request body too large",
				Code:  "BODY_TOO_LARGE",
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	info, err := h.svc.Load(c.Request.Context(), req.Name, req.Trees)
	if err != nil {
		status, code := loadErrorStatus(err)
		logger.Warn("Dataset load rejected", "error", err, "code", code)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Info("Dataset loaded",
		"dataset_id", info.ID,
		"name", info.Name,
		"nodes", info.Summary.Nodes)
	c.JSON(http.StatusCreated, info)
}

// HandleRestore handles POST /v1/phylo/datasets/restore.
func (h *Handlers) HandleRestore(c *gin.Context) {
	info, err := h.svc.Restore(c.Request.Context())
	if err != nil {
		status, code := loadErrorStatus(err)
		slog.Warn("Dataset restore failed", "request_id", getRequestID(c), "error", err, "code", code)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, info)
}

// HandleListSnapshots handles GET /v1/phylo/datasets.
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	list, current, err := h.svc.Snapshots(c.Request.Context())
	if err != nil {
		status, code := loadErrorStatus(err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	if list == nil {
		list = []badger.Snapshot{}
	}
	c.JSON(http.StatusOK, SnapshotsResponse{Snapshots: list, Current: current})
}

// HandleGetDataset handles GET /v1/phylo/dataset.
func (h *Handlers) HandleGetDataset(c *gin.Context) {
	info, ds, ok := h.dataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, DatasetResponse{
		DatasetInfo:           info,
		AvailableBranchLabels: ds.AvailableBranchLabels,
		NodeAttrKeys:          ds.NodeAttrKeys,
		SubtreeOffsets:        ds.SubtreeOffsets,
		Warnings:              ds.Warnings,
	})
}

// HandleGetNode handles GET /v1/phylo/nodes/:idx.
func (h *Handlers) HandleGetNode(c *gin.Context) {
	_, ds, ok := h.dataset(c)
	if !ok {
		return
	}
	idx, ok := parseIndex(c)
	if !ok {
		return
	}
	node, err := ds.Node(idx)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NODE_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, node)
}

// HandleFindNode handles GET /v1/phylo/nodes.
//
// Query Parameters:
//
//	name - Exact node name.
//	label, value - Branch label key and value; returns the first node in
//	               array order carrying that label.
func (h *Handlers) HandleFindNode(c *gin.Context) {
	_, ds, ok := h.dataset(c)
	if !ok {
		return
	}

	if name := c.Query("name"); name != "" {
		node, err := ds.NodeByName(name)
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NODE_NOT_FOUND"})
			return
		}
		c.JSON(http.StatusOK, node)
		return
	}

	key, value := c.Query("label"), c.Query("value")
	if key == "" || value == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "name or label and value query parameters are required",
			Code:  "INVALID_QUERY",
		})
		return
	}
	idx, found := ds.IdxMatchingLabel(key, value)
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no node with label " + key + "=" + value,
			Code:  "NODE_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, ds.Nodes[idx])
}

// HandleGetPath handles GET /v1/phylo/nodes/:idx/path.
func (h *Handlers) HandleGetPath(c *gin.Context) {
	_, ds, ok := h.dataset(c)
	if !ok {
		return
	}
	idx, ok := parseIndex(c)
	if !ok {
		return
	}
	path, err := ds.PathToRoot(idx)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NODE_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, NodesResponse{Nodes: path, Count: len(path)})
}

// HandleGetTips handles GET /v1/phylo/tips.
func (h *Handlers) HandleGetTips(c *gin.Context) {
	_, ds, ok := h.dataset(c)
	if !ok {
		return
	}
	tips := ds.Tips()
	c.JSON(http.StatusOK, NodesResponse{Nodes: tips, Count: len(tips)})
}

// HandleGetLabels handles GET /v1/phylo/labels.
func (h *Handlers) HandleGetLabels(c *gin.Context) {
	_, ds, ok := h.dataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, LabelsResponse{Labels: ds.AvailableBranchLabels})
}

// HandleGetMutations handles GET /v1/phylo/mutations.
//
// Query Parameters:
//
//	gene - Only report mutations on this gene.
//	top - Return at most this many entries, most frequent first.
func (h *Handlers) HandleGetMutations(c *gin.Context) {
	_, ds, ok := h.dataset(c)
	if !ok {
		return
	}

	top := 0
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "top must be a non-negative integer", Code: "INVALID_QUERY"})
			return
		}
		top = n
	}

	tally := ds.ObservedMutations
	if gene := c.Query("gene"); gene != "" {
		if err := validation.ValidateGene(gene); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_QUERY"})
			return
		}
		tally = make(map[string]int)
		for k, v := range ds.ObservedMutations {
			if (tree.MutationCount{Key: k}).Gene() == gene {
				tally[k] = v
			}
		}
	}

	c.JSON(http.StatusOK, MutationsResponse{
		Mutations: tree.TopMutations(tally, top),
		Distinct:  len(ds.ObservedMutations),
	})
}

// HandleGetVaccines handles GET /v1/phylo/vaccines.
func (h *Handlers) HandleGetVaccines(c *gin.Context) {
	_, ds, ok := h.dataset(c)
	if !ok {
		return
	}
	vaccines := ds.Vaccines
	if vaccines == nil {
		vaccines = []*tree.Node{}
	}
	c.JSON(http.StatusOK, NodesResponse{Nodes: vaccines, Count: len(vaccines)})
}

// RateLimitUploads rejects requests beyond the configured upload rate
// with 429. It is a no-op when no rate is configured.
func (h *Handlers) RateLimitUploads() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter != nil && !h.limiter.Allow() {
			uploadsRejected.Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "Too many dataset uploads",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

// dataset writes a 404 and returns false when nothing is loaded.
func (h *Handlers) dataset(c *gin.Context) (DatasetInfo, *tree.Dataset, bool) {
	info, ds, err := h.svc.Current()
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NO_DATASET"})
		return DatasetInfo{}, nil, false
	}
	return info, ds, true
}

func parseIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "node index must be an integer", Code: "INVALID_INDEX"})
		return 0, false
	}
	return idx, true
}

func loadErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidName):
		return http.StatusBadRequest, "INVALID_NAME"
	case errors.Is(err, tree.ErrNoTrees):
		return http.StatusBadRequest, "NO_TREES"
	case errors.Is(err, tree.ErrInvalidDocument):
		return http.StatusBadRequest, "INVALID_DOCUMENT"
	case errors.Is(err, tree.ErrStructure):
		return http.StatusUnprocessableEntity, "STRUCTURE_VIOLATION"
	case errors.Is(err, tree.ErrTooManyNodes):
		return http.StatusRequestEntityTooLarge, "TOO_MANY_NODES"
	case errors.Is(err, ErrStoreDisabled):
		return http.StatusNotImplemented, "STORE_DISABLED"
	case errors.Is(err, badger.ErrSnapshotNotFound):
		return http.StatusNotFound, "SNAPSHOT_NOT_FOUND"
	default:
		return http.StatusInternalServerError, "LOAD_FAILED"
	}
}

// requestIDKey is the gin context key holding the request ID.
const requestIDKey = "request_id"

// RequestID returns middleware that echoes the caller's X-Request-ID, or
// generates one, on every response and stores it under requestIDKey.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// getRequestID returns the ID set by RequestID, or empty when the
// middleware is not installed.
func getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
