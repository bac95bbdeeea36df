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
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Reserved names and display values.
const (
	// RootName is the name given to the synthetic root of every dataset.
	RootName = "__ROOT"

	// HiddenAlways marks a node that is never displayed.
	HiddenAlways = "always"

	// NoBranchLabel is the sentinel first entry of the branch label index,
	// meaning "no label selected".
	NoBranchLabel = "none"
)

// Document is a raw tree node as supplied by the caller.
//
// Documents are treated as immutable input. Ingestion never writes to them;
// everything it derives lives on Node.
type Document struct {
	// Name identifies the node. May be empty; ingestion backfills it.
	Name string `json:"name,omitempty"`

	// Children are owned by this document. Empty means the node is a tip.
	Children []*Document `json:"children,omitempty"`

	// BranchAttrs holds labels and mutations for the branch leading here.
	BranchAttrs *BranchAttrs `json:"branch_attrs,omitempty"`

	// NodeAttrs holds trait values (divergence, date, vaccine status, ...).
	NodeAttrs NodeAttrs `json:"node_attrs,omitempty"`
}

// BranchAttrs holds the attributes of the branch leading to a node.
type BranchAttrs struct {
	// Labels maps label category to value, in document order.
	Labels LabelSet `json:"labels,omitempty"`

	// Mutations maps gene identifier to its ordered change codes.
	Mutations map[string][]string `json:"mutations,omitempty"`
}

// LabelEntry is one raw branch label as read from input.
type LabelEntry struct {
	Key   string
	Value any
}

// LabelSet is an ordered label mapping.
//
// It decodes from a JSON object and keeps the object's key order, which
// defines "first seen" ordering for the branch label index. A repeated key
// replaces the earlier value in place.
type LabelSet []LabelEntry

// UnmarshalJSON decodes a JSON object while preserving key order.
func (s *LabelSet) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: labels must be an object", ErrInvalidDocument)
	}

	var out LabelSet
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("label %q: %w", key, err)
		}
		out = out.set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = out
	return nil
}

// MarshalJSON encodes the set as a JSON object in stored order.
func (s LabelSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", e.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s LabelSet) set(key string, v any) LabelSet {
	for i := range s {
		if s[i].Key == key {
			s[i].Value = v
			return s
		}
	}
	return append(s, LabelEntry{Key: key, Value: v})
}

// Label is a branch label after ingestion. Values are always text.
type Label struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ParentInfo records parent references that may diverge from Node.Parent.
type ParentInfo struct {
	// Original is the parent index assigned at ingestion.
	Original int `json:"original"`
}

// Node is the engine's record for one tree node.
//
// Parent and Children are indices into Dataset.Nodes, never pointers.
type Node struct {
	// Name is non-empty and unique across the dataset after ingestion.
	Name string `json:"name"`

	// ArrayIdx is the node's position in Dataset.Nodes.
	ArrayIdx int `json:"arrayIdx"`

	// HasChildren reports whether the node has at least one child.
	HasChildren bool `json:"hasChildren"`

	// Children are the indices of the node's children, in input order.
	Children []int `json:"children,omitempty"`

	// Parent is the index of the parent. The synthetic root is its own parent.
	Parent int `json:"parent"`

	// ParentInfo holds the original parent reference.
	ParentInfo ParentInfo `json:"parentInfo"`

	// FullTipCount is the number of tips at or below this node.
	FullTipCount int `json:"fullTipCount"`

	// Hidden is HiddenAlways for the synthetic root, empty otherwise.
	Hidden string `json:"hidden,omitempty"`

	// Labels holds branch labels with values normalized to text.
	// Populated by IndexBranchLabels.
	Labels []Label `json:"labels,omitempty"`

	// Mutations maps gene to change codes for the branch leading here.
	Mutations map[string][]string `json:"mutations,omitempty"`

	// Attrs holds the node's trait values.
	Attrs NodeAttrs `json:"node_attrs,omitempty"`

	// Doc is the source document, nil for the synthetic root.
	Doc *Document `json:"-"`

	// rawLabels are the branch labels as decoded from input.
	rawLabels LabelSet
}

// IsRoot reports whether n is its own parent.
func (n *Node) IsRoot() bool {
	return n.Parent == n.ArrayIdx
}

// IsTip reports whether n has no children.
func (n *Node) IsTip() bool {
	return len(n.Children) == 0
}

// Label returns the text value of a branch label.
func (n *Node) Label(key string) (string, bool) {
	for _, l := range n.Labels {
		if l.Key == key {
			return l.Value, true
		}
	}
	return "", false
}

// newNode creates the engine record for a document. Structural fields are
// filled in by BuildForest. Attrs and Mutations are deep copies, so writes
// to the node never reach the document.
func newNode(doc *Document) *Node {
	n := &Node{
		Name:  doc.Name,
		Attrs: cloneAttrs(doc.NodeAttrs),
		Doc:   doc,
	}
	if doc.BranchAttrs != nil {
		n.Mutations = cloneMutations(doc.BranchAttrs.Mutations)
		if len(doc.BranchAttrs.Labels) > 0 {
			n.rawLabels = append(LabelSet(nil), doc.BranchAttrs.Labels...)
		}
	}
	return n
}

func cloneAttrs(a NodeAttrs) NodeAttrs {
	if a == nil {
		return nil
	}
	out := make(NodeAttrs, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the JSON container types; scalars are returned as is.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneMutations(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for gene, changes := range out {
		out[gene] = slices.Clone(changes)
	}
	return out
}
