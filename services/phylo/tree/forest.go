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

// Forest is the merged, flattened form of one or more input trees.
type Forest struct {
	// Nodes holds every node in pre-order. Nodes[0] is the synthetic root.
	Nodes []*Node

	// SubtreeOffsets holds, per input tree, the index of its root in Nodes.
	SubtreeOffsets []int
}

// BuildForest merges input trees under a synthetic root.
//
// Description:
//
//	Each tree is parent-linked and flattened, then the sequences are
//	concatenated behind a synthetic root at index 0. The root's children are
//	the original tree roots in input order and each original root's parent
//	becomes the synthetic root. The root carries the minimum divergence and
//	minimum numeric date of its children; a trait no child exposes is
//	omitted rather than defaulted.
//
// Inputs:
//   - trees: One or more tree roots.
//
// Outputs:
//   - *Forest: The merged forest. ArrayIdx, names and tip counts are not
//     assigned yet.
//   - error: ErrNoTrees, ErrInvalidDocument or ErrStructure.
func BuildForest(trees []*Document) (*Forest, error) {
	if len(trees) == 0 {
		return nil, ErrNoTrees
	}

	root := &Node{
		Name:   RootName,
		Parent: 0,
		Hidden: HiddenAlways,
	}
	nodes := []*Node{root}
	index := make(map[*Document]int)
	offsets := make([]int, 0, len(trees))

	for t, treeRoot := range trees {
		if treeRoot == nil {
			return nil, fmt.Errorf("%w: tree %d is nil", ErrInvalidDocument, t)
		}
		parents, err := LinkParents(treeRoot)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", t, err)
		}
		order, err := Flatten(treeRoot)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", t, err)
		}

		start := len(nodes)
		offsets = append(offsets, start)
		for _, doc := range order {
			if _, dup := index[doc]; dup {
				return nil, fmt.Errorf("tree %d: %w: node %q also appears in another tree", t, ErrStructure, doc.Name)
			}
			index[doc] = len(nodes)
			nodes = append(nodes, newNode(doc))
		}

		for i, doc := range order {
			n := nodes[start+i]
			if p := parents[doc]; p == doc {
				n.Parent = 0
			} else {
				n.Parent = index[p]
			}
			if len(doc.Children) > 0 {
				n.Children = make([]int, len(doc.Children))
				for c, child := range doc.Children {
					n.Children[c] = index[child]
				}
			}
		}
	}

	root.Children = append([]int(nil), offsets...)
	root.Attrs = rootAttrs(trees)

	return &Forest{Nodes: nodes, SubtreeOffsets: offsets}, nil
}

// rootAttrs computes the synthetic root's aggregate traits.
func rootAttrs(trees []*Document) NodeAttrs {
	var (
		minDiv, minDate float64
		hasDiv, hasDate bool
	)
	for _, t := range trees {
		if d, ok := t.NodeAttrs.Divergence(); ok && (!hasDiv || d < minDiv) {
			minDiv, hasDiv = d, true
		}
		if d, ok := t.NodeAttrs.NumDate(); ok && (!hasDate || d < minDate) {
			minDate, hasDate = d, true
		}
	}

	attrs := NodeAttrs{}
	if hasDiv {
		attrs[AttrDivergence] = minDiv
	}
	if hasDate {
		attrs[AttrNumDate] = map[string]any{"value": minDate}
	}
	return attrs
}
