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
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IndexBranchLabels collects branch label categories and normalizes label
// values to text.
//
// Description:
//
//	Scans nodes in array order. Every label category is added to the index
//	the first time it is seen, and each node's Labels are rebuilt from its
//	input with values converted by LabelText. Safe to run more than once.
//
// Outputs:
//   - []string: NoBranchLabel followed by each category once, in first-seen
//     order. A category literally named NoBranchLabel is not repeated.
func IndexBranchLabels(nodes []*Node) []string {
	seen := map[string]struct{}{NoBranchLabel: {}}
	out := []string{NoBranchLabel}

	for _, n := range nodes {
		if len(n.rawLabels) == 0 {
			continue
		}
		labels := make([]Label, 0, len(n.rawLabels))
		for _, e := range n.rawLabels {
			if _, ok := seen[e.Key]; !ok {
				seen[e.Key] = struct{}{}
				out = append(out, e.Key)
			}
			labels = append(labels, Label{Key: e.Key, Value: LabelText(e.Value)})
		}
		n.Labels = labels
	}

	return out
}

// LabelText renders a decoded label value as text.
//
// Strings pass through, numbers use the shortest representation that
// round-trips (plain notation between 1e-6 and 1e21, unpadded exponent form
// such as "1e-7" outside it), booleans render as "true"/"false" and null as
// "null". Anything else is rendered as JSON.
func LabelText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatNumber(x)
	case float32:
		return formatNumber(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func formatNumber(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return trimExponent(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// trimExponent drops leading zeros from an exponent: "1e-07" -> "1e-7".
func trimExponent(s string) string {
	i := strings.IndexByte(s, 'e')
	if i < 0 || i+2 >= len(s) {
		return s
	}
	digits := strings.TrimLeft(s[i+2:], "0")
	if digits == "" {
		digits = "0"
	}
	return s[:i+2] + digits
}
