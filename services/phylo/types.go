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
	"encoding/json"
	"time"

	"github.com/AleutianAI/AleutianPhylo/services/phylo/storage/badger"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/tree"
)

// DatasetInfo identifies one published dataset.
type DatasetInfo struct {
	// ID is unique per publication, even when the same bytes are reloaded.
	ID string `json:"id"`

	// Name is the operator-facing dataset name.
	Name string `json:"name"`

	// SHA256 is the hex digest of the raw input.
	SHA256 string `json:"sha256"`

	// Size is the raw input size in bytes.
	Size int `json:"size"`

	// LoadedAt is when the dataset was published.
	LoadedAt time.Time `json:"loaded_at"`

	// Cached reports whether ingestion was skipped because identical input
	// had already been ingested.
	Cached bool `json:"cached"`

	// Summary holds aggregate counts.
	Summary tree.Summary `json:"summary"`
}

// LoadRequest is the body of POST /v1/phylo/datasets.
type LoadRequest struct {
	// Name is the dataset name.
	Name string `json:"name" binding:"required,max=128"`

	// Trees is one tree document or an array of them.
	Trees json.RawMessage `json:"trees" binding:"required"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is the body of GET /v1/phylo/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	DatasetLoaded bool   `json:"dataset_loaded"`
}

// DatasetResponse is the body of GET /v1/phylo/dataset.
type DatasetResponse struct {
	DatasetInfo

	AvailableBranchLabels []string       `json:"available_branch_labels"`
	NodeAttrKeys          []string       `json:"node_attr_keys"`
	SubtreeOffsets        []int          `json:"subtree_offsets"`
	Warnings              []tree.Warning `json:"warnings,omitempty"`
}

// NodesResponse wraps a list of nodes.
type NodesResponse struct {
	Nodes []*tree.Node `json:"nodes"`
	Count int          `json:"count"`
}

// LabelsResponse is the body of GET /v1/phylo/labels.
type LabelsResponse struct {
	Labels []string `json:"labels"`
}

// MutationsResponse is the body of GET /v1/phylo/mutations.
type MutationsResponse struct {
	Mutations []tree.MutationCount `json:"mutations"`

	// Distinct is the number of distinct mutation keys before any
	// gene filter or top-N cut.
	Distinct int `json:"distinct"`
}

// SnapshotsResponse is the body of GET /v1/phylo/datasets.
type SnapshotsResponse struct {
	Snapshots []badger.Snapshot `json:"snapshots"`
	Current   string            `json:"current,omitempty"`
}
