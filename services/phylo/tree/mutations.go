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
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MutationKey returns the tally key for a change on a gene.
func MutationKey(gene, change string) string {
	return gene + ":" + change
}

// TallyMutations counts every (gene, change) occurrence across nodes.
//
// Outputs:
//   - map[string]int: MutationKey -> exact occurrence count. Map order is
//     unspecified.
func TallyMutations(nodes []*Node) map[string]int {
	out := make(map[string]int)
	for _, n := range nodes {
		for gene, changes := range n.Mutations {
			for _, change := range changes {
				out[MutationKey(gene, change)]++
			}
		}
	}
	return out
}

// Mutation is a parsed change code such as "A123G".
type Mutation struct {
	Gene     string `json:"gene"`
	From     string `json:"from"`
	Position int    `json:"position"`
	To       string `json:"to"`
}

// String returns the change code without the gene.
func (m Mutation) String() string {
	return m.From + strconv.Itoa(m.Position) + m.To
}

// ParseMutation splits a change code into from-state, 1-based position and
// to-state. States are single characters; "-" denotes a gap.
func ParseMutation(gene, code string) (Mutation, error) {
	if len(code) < 3 {
		return Mutation{}, fmt.Errorf("%w: %q", ErrInvalidMutation, code)
	}
	pos, err := strconv.Atoi(code[1 : len(code)-1])
	if err != nil || pos <= 0 {
		return Mutation{}, fmt.Errorf("%w: %q", ErrInvalidMutation, code)
	}
	return Mutation{
		Gene:     gene,
		From:     code[:1],
		Position: pos,
		To:       code[len(code)-1:],
	}, nil
}

// MutationCount is one tally entry.
type MutationCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Gene returns the gene part of the key.
func (c MutationCount) Gene() string {
	gene, _, _ := strings.Cut(c.Key, ":")
	return gene
}

// TopMutations returns the n most frequent tally entries, highest count
// first and ties broken by key. n <= 0 returns all entries.
func TopMutations(tally map[string]int, n int) []MutationCount {
	out := make([]MutationCount, 0, len(tally))
	for k, c := range tally {
		out = append(out, MutationCount{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
