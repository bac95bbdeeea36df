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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mutated(name string, muts map[string][]string, children ...*Document) *Document {
	d := inner(name, children...)
	d.BranchAttrs = &BranchAttrs{Mutations: muts}
	return d
}

func TestTallyMutations(t *testing.T) {
	t.Run("no mutations", func(t *testing.T) {
		nodes := forestNodes(t, leaf("a"))
		assert.Empty(t, TallyMutations(nodes))
	})

	t.Run("counts every occurrence", func(t *testing.T) {
		nodes := forestNodes(t,
			mutated("p", map[string][]string{"nuc": {"A10G", "C20T"}, "S": {"D614G"}},
				mutated("a", map[string][]string{"nuc": {"A10G"}}),
				mutated("b", map[string][]string{"S": {"D614G", "N501Y"}}),
			),
			mutated("q", map[string][]string{"nuc": {"A10G"}, "ORF1a": {}}),
		)
		got := TallyMutations(nodes)
		assert.Equal(t, map[string]int{
			"nuc:A10G": 3,
			"nuc:C20T": 1,
			"S:D614G":  2,
			"S:N501Y":  1,
		}, got)
	})

	t.Run("same change on different genes is distinct", func(t *testing.T) {
		nodes := forestNodes(t, mutated("p", map[string][]string{"HA1": {"K160T"}, "HA2": {"K160T"}}))
		got := TallyMutations(nodes)
		assert.Equal(t, 1, got[MutationKey("HA1", "K160T")])
		assert.Equal(t, 1, got[MutationKey("HA2", "K160T")])
	})
}

func TestParseMutation(t *testing.T) {
	m, err := ParseMutation("S", "D614G")
	require.NoError(t, err)
	assert.Equal(t, Mutation{Gene: "S", From: "D", Position: 614, To: "G"}, m)
	assert.Equal(t, "D614G", m.String())

	gap, err := ParseMutation("nuc", "A21765-")
	require.NoError(t, err)
	assert.Equal(t, "-", gap.To)
	assert.Equal(t, 21765, gap.Position)

	for _, bad := range []string{"", "AG", "AxG", "A0G", "A-5G"} {
		_, err := ParseMutation("nuc", bad)
		assert.ErrorIs(t, err, ErrInvalidMutation, "code %q", bad)
	}
}

func TestTopMutations(t *testing.T) {
	tally := map[string]int{"nuc:A1G": 2, "S:D614G": 5, "nuc:C2T": 2, "E:T9I": 1}

	got := TopMutations(tally, 3)
	assert.Equal(t, []MutationCount{
		{Key: "S:D614G", Count: 5},
		{Key: "nuc:A1G", Count: 2},
		{Key: "nuc:C2T", Count: 2},
	}, got)
	assert.Equal(t, "S", got[0].Gene())

	assert.Len(t, TopMutations(tally, 0), 4)
	assert.Len(t, TopMutations(tally, 10), 4)
}
