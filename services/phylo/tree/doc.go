// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tree ingests nested phylogenetic tree documents into a flat,
// indexed node array.
//
// A dataset is one or more independently rooted trees. Ingestion merges them
// under a hidden synthetic root, flattens the result in pre-order, derives
// per-node metrics and builds the indices consumers filter and colour by.
//
// # Ownership Model
//
// Ownership is strictly downward. Input Documents are never modified; the
// engine produces its own Node records and refers to parents and children by
// array index rather than by pointer:
//   - Node.ArrayIdx is the node's position in Dataset.Nodes
//   - Node.Parent is an index; the synthetic root's parent is itself (0)
//   - Node.Doc points back at the source Document (nil for the root)
//
// # Lifecycle
//
//  1. Decode input with DecodeDocuments (one document or an array of them)
//  2. Call Ingest to build a Dataset
//  3. Read the Dataset; replace it wholesale when new input arrives
//
// # Thread Safety
//
// Ingest is a pure function of its input and may run concurrently with other
// Ingest calls. A returned Dataset is safe for concurrent reads. Structural
// fields must not be modified after Ingest returns.
package tree
