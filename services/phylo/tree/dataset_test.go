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
	"testing"
)

func sampleDataset(t *testing.T) *Dataset {
	t.Helper()
	ds, err := Ingest(context.Background(), mustDecode(t, sampleTree))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return ds
}

func TestDataset_PathToRoot(t *testing.T) {
	ds := sampleDataset(t)

	tip, err := ds.NodeByName("tipA2")
	if err != nil {
		t.Fatalf("NodeByName: %v", err)
	}
	path, err := ds.PathToRoot(tip.ArrayIdx)
	if err != nil {
		t.Fatalf("PathToRoot: %v", err)
	}

	want := []string{"tipA2", "clade-A", "root", RootName}
	if len(path) != len(want) {
		t.Fatalf("path length = %d, want %d", len(path), len(want))
	}
	for i, n := range path {
		if n.Name != want[i] {
			t.Errorf("path[%d] = %q, want %q", i, n.Name, want[i])
		}
	}

	rootPath, err := ds.PathToRoot(0)
	if err != nil {
		t.Fatalf("PathToRoot(0): %v", err)
	}
	if len(rootPath) != 1 || rootPath[0] != ds.Root() {
		t.Errorf("PathToRoot(0) should contain only the root")
	}
}

func TestDataset_Lookups(t *testing.T) {
	ds := sampleDataset(t)

	if _, err := ds.Node(-1); err == nil {
		t.Error("expected error for negative index")
	}
	if _, err := ds.Node(ds.Len()); err == nil {
		t.Error("expected error for index past end")
	}
	if _, err := ds.PathToRoot(ds.Len()); err == nil {
		t.Error("expected error for PathToRoot past end")
	}
	if _, err := ds.NodeByName("nope"); err == nil {
		t.Error("expected error for unknown name")
	}

	n, err := ds.Node(1)
	if err != nil {
		t.Fatalf("Node(1): %v", err)
	}
	if n.Name != "root" {
		t.Errorf("Node(1).Name = %q, want %q", n.Name, "root")
	}

	idx, ok := ds.IdxMatchingLabel("clade", "19")
	if !ok {
		t.Fatal("expected a node labelled clade=19")
	}
	if ds.Nodes[idx].Name != "tipB" {
		t.Errorf("IdxMatchingLabel returned %q, want tipB", ds.Nodes[idx].Name)
	}
	if _, ok := ds.IdxMatchingLabel("clade", "Z"); ok {
		t.Error("expected no match for clade=Z")
	}
}

func TestDataset_Summary(t *testing.T) {
	got := sampleDataset(t).Summary()
	want := Summary{
		Trees:             1,
		Nodes:             6,
		Tips:              3,
		BranchLabels:      2,
		DistinctMutations: 3,
		MutationEvents:    4,
		Vaccines:          1,
		Warnings:          0,
	}
	if got != want {
		t.Errorf("Summary() = %+v, want %+v", got, want)
	}
}
