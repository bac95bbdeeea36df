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

// ComputeTipCounts sets FullTipCount on every node.
//
// Description:
//
//	A tip counts 1; an internal node counts the sum of its children.
//	Nodes must be in pre-order, so walking the array backwards visits every
//	child before its parent. This is the post-order accumulation without the
//	recursion depth of a recursive walk.
//
// Inputs:
//   - nodes: A pre-ordered node array as produced by BuildForest.
//
// Thread Safety: NOT safe for concurrent use on the same array.
func ComputeTipCounts(nodes []*Node) {
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if len(n.Children) == 0 {
			n.FullTipCount = 1
			continue
		}
		count := 0
		for _, c := range n.Children {
			count += nodes[c].FullTipCount
		}
		n.FullTipCount = count
	}
}
