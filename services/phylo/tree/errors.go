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

import "errors"

// Sentinel errors for ingestion and dataset queries.
var (
	// ErrNoTrees is returned when ingestion is given an empty forest.
	ErrNoTrees = errors.New("no trees to ingest")

	// ErrInvalidDocument is returned for input that is not a valid node,
	// such as a nil document or nil child entry.
	ErrInvalidDocument = errors.New("invalid tree document")

	// ErrStructure is returned when a document is reachable more than once,
	// either through a shared subtree or a genuine cycle.
	ErrStructure = errors.New("tree structure violation")

	// ErrTooManyNodes is returned when the forest exceeds the configured
	// node limit.
	ErrTooManyNodes = errors.New("maximum node count exceeded")

	// ErrNodeNotFound is returned by lookups that match no node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidMutation is returned when a mutation code cannot be parsed.
	ErrInvalidMutation = errors.New("invalid mutation code")
)
