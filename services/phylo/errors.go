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

import "errors"

// Sentinel errors for the phylo service.
var (
	// ErrNoDataset indicates no dataset has been loaded yet.
	ErrNoDataset = errors.New("no dataset loaded")

	// ErrInvalidName indicates a dataset name outside [A-Za-z0-9._-].
	ErrInvalidName = errors.New("invalid dataset name")

	// ErrStoreDisabled indicates a snapshot operation without a configured store.
	ErrStoreDisabled = errors.New("snapshot store not configured")

	// ErrSnapshotFailed indicates the dataset was ingested but could not be persisted.
	ErrSnapshotFailed = errors.New("dataset snapshot failed")
)
