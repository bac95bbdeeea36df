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
	"log/slog"
	"math/rand/v2"
)

const (
	// generatedNameLength is the length of names made for unnamed nodes.
	generatedNameLength = 8

	// suffixLength is the length of the suffix appended to duplicate names.
	suffixLength = 5

	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	base36       = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// WarningKind classifies a repair made during name sanitization.
type WarningKind int

const (
	// WarningMissingName means a node had no name and one was generated.
	WarningMissingName WarningKind = iota

	// WarningDuplicateName means a node's name was already taken and a
	// suffix was appended.
	WarningDuplicateName
)

// String returns the string representation of the WarningKind.
func (k WarningKind) String() string {
	switch k {
	case WarningMissingName:
		return "missing_name"
	case WarningDuplicateName:
		return "duplicate_name"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k WarningKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Warning records a data-quality repair.
type Warning struct {
	// Index is the ArrayIdx of the repaired node.
	Index int `json:"index"`

	// Kind says what was repaired.
	Kind WarningKind `json:"kind"`

	// Original is the name before repair (empty for missing names).
	Original string `json:"original"`

	// Name is the name after repair.
	Name string `json:"name"`
}

// Sanitizer assigns array positions and guarantees unique, non-empty names.
//
// The seen-set lives for a single Sanitize call. Generated names are random
// and only need to be stable within one pass.
type Sanitizer struct {
	rng    *rand.Rand
	logger *slog.Logger
}

// NewSanitizer creates a Sanitizer. A nil rng uses a randomly seeded source
// and a nil logger uses slog.Default().
func NewSanitizer(rng *rand.Rand, logger *slog.Logger) *Sanitizer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{rng: rng, logger: logger}
}

// Sanitize makes one forward pass over nodes.
//
// Description:
//
//	For each node, in array order:
//	  1. ArrayIdx and HasChildren are assigned.
//	  2. An empty name is replaced with a random alphanumeric name.
//	  3. A name already used earlier in the pass gets a random "_xxxxx"
//	     suffix, regenerated until unused.
//	Order matters: the first holder of a name keeps it.
//
// Outputs:
//   - []Warning: One entry per repair, in array order.
func (s *Sanitizer) Sanitize(nodes []*Node) []Warning {
	seen := make(map[string]struct{}, len(nodes))
	var warnings []Warning

	for i, n := range nodes {
		n.ArrayIdx = i
		n.HasChildren = len(n.Children) > 0

		if n.Name == "" {
			n.Name = s.randomString(alphanumeric, generatedNameLength)
			warnings = append(warnings, s.warn(Warning{Index: i, Kind: WarningMissingName, Name: n.Name}))
		}

		if _, dup := seen[n.Name]; dup {
			original := n.Name
			for {
				candidate := original + "_" + s.randomString(base36, suffixLength)
				if _, taken := seen[candidate]; !taken {
					n.Name = candidate
					break
				}
			}
			warnings = append(warnings, s.warn(Warning{Index: i, Kind: WarningDuplicateName, Original: original, Name: n.Name}))
		}

		seen[n.Name] = struct{}{}
	}

	return warnings
}

func (s *Sanitizer) warn(w Warning) Warning {
	switch w.Kind {
	case WarningMissingName:
		s.logger.Warn("node has no name, generated one",
			slog.Int("node_index", w.Index),
			slog.String("name", w.Name))
	case WarningDuplicateName:
		s.logger.Warn("duplicate node name, appended suffix",
			slog.Int("node_index", w.Index),
			slog.String("original", w.Original),
			slog.String("name", w.Name))
	}
	return w
}

func (s *Sanitizer) randomString(alphabet string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[s.rng.IntN(len(alphabet))]
	}
	return string(b)
}
