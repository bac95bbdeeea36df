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

// Flatten returns every document reachable from root in pre-order.
//
// Description:
//
//	Iterative traversal with an explicit stack so very deep trees cannot
//	exhaust the goroutine stack. Children are pushed in reverse so they are
//	visited left to right. A parent always precedes its descendants.
//
// Inputs:
//   - root: The tree root. Must not be nil.
//
// Outputs:
//   - []*Document: Documents in pre-order, each exactly once.
//   - error: ErrInvalidDocument for nil nodes, ErrStructure if any document
//     is reachable twice (shared subtree or cycle).
func Flatten(root *Document) ([]*Document, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root", ErrInvalidDocument)
	}

	seen := make(map[*Document]struct{})
	var out []*Document
	stack := []*Document{root}

	for len(stack) > 0 {
		doc := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, dup := seen[doc]; dup {
			return nil, fmt.Errorf("%w: node %q reached more than once", ErrStructure, doc.Name)
		}
		seen[doc] = struct{}{}
		out = append(out, doc)

		for i := len(doc.Children) - 1; i >= 0; i-- {
			child := doc.Children[i]
			if child == nil {
				return nil, fmt.Errorf("%w: child %d of %q is nil", ErrInvalidDocument, i, doc.Name)
			}
			stack = append(stack, child)
		}
	}

	return out, nil
}

// LinkParents maps every document reachable from root to its parent.
//
// Description:
//
//	Uses the same stack discipline as Flatten. The root maps to itself so
//	that walking towards the root stops on a uniform rule.
//
// Outputs:
//   - map[*Document]*Document: child -> parent, root -> root.
//   - error: ErrInvalidDocument for nil nodes, ErrStructure if a document
//     has two parents or the root is reachable from below.
func LinkParents(root *Document) (map[*Document]*Document, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root", ErrInvalidDocument)
	}

	parents := map[*Document]*Document{root: root}
	stack := []*Document{root}

	for len(stack) > 0 {
		doc := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for i := len(doc.Children) - 1; i >= 0; i-- {
			child := doc.Children[i]
			if child == nil {
				return nil, fmt.Errorf("%w: child %d of %q is nil", ErrInvalidDocument, i, doc.Name)
			}
			if _, linked := parents[child]; linked {
				return nil, fmt.Errorf("%w: node %q has more than one parent", ErrStructure, child.Name)
			}
			parents[child] = doc
			stack = append(stack, child)
		}
	}

	return parents, nil
}
