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

import "fmt"

// Dataset is the complete output of one ingestion.
//
// A Dataset is replaced wholesale when new input is loaded; it is never
// updated incrementally. Consumers refer to nodes by ArrayIdx.
type Dataset struct {
	// Nodes holds every node in pre-order; Nodes[0] is the synthetic root.
	Nodes []*Node

	// Vaccines holds the vaccine nodes in array order.
	Vaccines []*Node

	// ObservedMutations maps MutationKey to occurrence count.
	ObservedMutations map[string]int

	// AvailableBranchLabels starts with NoBranchLabel, then every label
	// category once in first-seen order.
	AvailableBranchLabels []string

	// NodeAttrKeys lists the non-structural trait keys in first-seen order.
	NodeAttrKeys []string

	// SubtreeOffsets holds the index of each input tree's root.
	SubtreeOffsets []int

	// Warnings lists the name repairs made during ingestion.
	Warnings []Warning

	byName map[string]int
}

type datasetIndices struct {
	vaccines  []*Node
	mutations map[string]int
	labels    []string
	attrKeys  []string
	offsets   []int
	warnings  []Warning
}

func newDataset(nodes []*Node, idx datasetIndices) *Dataset {
	byName := make(map[string]int, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n.ArrayIdx
	}
	return &Dataset{
		Nodes:                 nodes,
		Vaccines:              idx.vaccines,
		ObservedMutations:     idx.mutations,
		AvailableBranchLabels: idx.labels,
		NodeAttrKeys:          idx.attrKeys,
		SubtreeOffsets:        idx.offsets,
		Warnings:              idx.warnings,
		byName:                byName,
	}
}

// Root returns the synthetic root.
func (d *Dataset) Root() *Node {
	return d.Nodes[0]
}

// Len returns the number of nodes, synthetic root included.
func (d *Dataset) Len() int {
	return len(d.Nodes)
}

// Node returns the node at idx.
func (d *Dataset) Node(idx int) (*Node, error) {
	if idx < 0 || idx >= len(d.Nodes) {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrNodeNotFound, idx, len(d.Nodes))
	}
	return d.Nodes[idx], nil
}

// NodeByName returns the node with the given name.
func (d *Dataset) NodeByName(name string) (*Node, error) {
	idx, ok := d.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	return d.Nodes[idx], nil
}

// PathToRoot returns the node at idx followed by each ancestor up to and
// including the synthetic root.
func (d *Dataset) PathToRoot(idx int) ([]*Node, error) {
	n, err := d.Node(idx)
	if err != nil {
		return nil, err
	}
	path := []*Node{n}
	for !n.IsRoot() {
		n = d.Nodes[n.Parent]
		path = append(path, n)
	}
	return path, nil
}

// Tips returns all tips in array order.
func (d *Dataset) Tips() []*Node {
	out := make([]*Node, 0, d.Root().FullTipCount)
	for _, n := range d.Nodes {
		if n.IsTip() {
			out = append(out, n)
		}
	}
	return out
}

// IdxMatchingLabel returns the index of the first node, in array order,
// whose branch label key has the given value.
func (d *Dataset) IdxMatchingLabel(key, value string) (int, bool) {
	for _, n := range d.Nodes {
		if v, ok := n.Label(key); ok && v == value {
			return n.ArrayIdx, true
		}
	}
	return 0, false
}

// Summary describes a dataset in aggregate.
type Summary struct {
	Trees             int `json:"trees"`
	Nodes             int `json:"nodes"`
	Tips              int `json:"tips"`
	BranchLabels      int `json:"branch_labels"`
	DistinctMutations int `json:"distinct_mutations"`
	MutationEvents    int `json:"mutation_events"`
	Vaccines          int `json:"vaccines"`
	Warnings          int `json:"warnings"`
}

// Summary returns aggregate counts for the dataset.
func (d *Dataset) Summary() Summary {
	events := 0
	for _, c := range d.ObservedMutations {
		events += c
	}
	return Summary{
		Trees:             len(d.SubtreeOffsets),
		Nodes:             len(d.Nodes),
		Tips:              d.Root().FullTipCount,
		BranchLabels:      len(d.AvailableBranchLabels) - 1,
		DistinctMutations: len(d.ObservedMutations),
		MutationEvents:    events,
		Vaccines:          len(d.Vaccines),
		Warnings:          len(d.Warnings),
	}
}
