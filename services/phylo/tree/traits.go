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
	"encoding/json"
	"sort"
)

// Well-known node attribute keys.
const (
	AttrDivergence = "div"
	AttrNumDate    = "num_date"
	AttrVaccine    = "vaccine"
	AttrHidden     = "hidden"
)

// DefaultVaccineStatus is the status every vaccine record may carry without
// marking the node as a vaccine strain.
const DefaultVaccineStatus = "serum"

// structuralAttrs are node attributes that are not offered as traits.
var structuralAttrs = map[string]struct{}{
	AttrDivergence: {},
	AttrNumDate:    {},
	AttrVaccine:    {},
	AttrHidden:     {},
}

// NodeAttrs holds a node's trait values keyed by attribute name.
//
// Values are whatever the input decoded to. Use the lookup helpers rather
// than type-asserting directly.
type NodeAttrs map[string]any

// Trait returns the value of a trait. Traits stored as {"value": x} are
// unwrapped.
func (a NodeAttrs) Trait(name string) (any, bool) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, false
	}
	if m, isMap := v.(map[string]any); isMap {
		inner, has := m["value"]
		return inner, has && inner != nil
	}
	return v, true
}

// Divergence returns the node's divergence.
func (a NodeAttrs) Divergence() (float64, bool) {
	v, ok := a[AttrDivergence]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// NumDate returns the node's numeric date.
func (a NodeAttrs) NumDate() (float64, bool) {
	v, ok := a.Trait(AttrNumDate)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Vaccine returns the node's vaccine record.
func (a NodeAttrs) Vaccine() (map[string]any, bool) {
	v, ok := a[AttrVaccine].(map[string]any)
	return v, ok && v != nil
}

// IsVaccine reports whether the node carries vaccine data beyond the single
// default status. A record with no keys, or with only DefaultVaccineStatus,
// does not mark a vaccine strain.
func (a NodeAttrs) IsVaccine() bool {
	v, ok := a.Vaccine()
	if !ok || len(v) == 0 {
		return false
	}
	if len(v) > 1 {
		return true
	}
	_, onlyDefault := v[DefaultVaccineStatus]
	return !onlyDefault
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// CollectVaccines returns the nodes that qualify as vaccine strains, in
// array order.
func CollectVaccines(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.Attrs.IsVaccine() {
			out = append(out, n)
		}
	}
	return out
}

// IndexNodeAttrKeys returns the distinct trait keys present on any node, in
// first-seen order. Keys are sorted within a node because map order is
// unspecified. Structural keys are excluded.
func IndexNodeAttrKeys(nodes []*Node) []string {
	seen := make(map[string]struct{})
	var out []string
	keys := make([]string, 0, 8)
	for _, n := range nodes {
		keys = keys[:0]
		for k := range n.Attrs {
			if _, skip := structuralAttrs[k]; skip {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
