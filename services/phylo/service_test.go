// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package phylo

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPhylo/pkg/validation"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/storage/badger"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/tree"
)

const fluTree = `{
  "name": "root",
  "node_attrs": {"div": 0, "num_date": {"value": 2019.9}},
  "children": [
    {
      "name": "clade-A",
      "branch_attrs": {
        "labels": {"clade": "A", "aa": 2},
        "mutations": {"nuc": ["C241T", "A23403G"], "S": ["D614G"]}
      },
      "node_attrs": {"div": 0.001, "region": "Europe"},
      "children": [
        {"name": "tipA1", "node_attrs": {"div": 0.002, "vaccine": {"selection_date": "2020-05-01"}}},
        {"name": "tipA2", "branch_attrs": {"mutations": {"S": ["D614G"]}}, "node_attrs": {"div": 0.003}}
      ]
    },
    {
      "name": "tipB",
      "branch_attrs": {"labels": {"clade": 19}},
      "node_attrs": {"div": 0.004, "vaccine": {"serum": true}}
    }
  ]
}`

func newTestService(t *testing.T, store *badger.SnapshotStore) *Service {
	t.Helper()
	cfg := DefaultServiceConfig()
	cfg.Store = store
	svc, err := NewService(cfg)
	require.NoError(t, err)
	return svc
}

func newTestStore(t *testing.T) *badger.SnapshotStore {
	t.Helper()
	db, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store, err := badger.NewSnapshotStore(db)
	require.NoError(t, err)
	return store
}

func TestService_CurrentBeforeLoad(t *testing.T) {
	svc := newTestService(t, nil)
	_, _, err := svc.Current()
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestService_Load(t *testing.T) {
	svc := newTestService(t, nil)

	info, err := svc.Load(context.Background(), "flu", []byte(fluTree))
	require.NoError(t, err)

	assert.Equal(t, "flu", info.Name)
	assert.NotEmpty(t, info.ID)
	assert.Len(t, info.SHA256, 64)
	assert.Equal(t, len(fluTree), info.Size)
	assert.False(t, info.Cached)
	assert.Equal(t, 6, info.Summary.Nodes)
	assert.Equal(t, 3, info.Summary.Tips)
	assert.Equal(t, 1, info.Summary.Vaccines)

	got, ds, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, info, got)
	assert.Equal(t, []string{tree.NoBranchLabel, "clade", "aa"}, ds.AvailableBranchLabels)
}

func TestService_LoadCachesIdenticalInput(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.Load(ctx, "flu", []byte(fluTree))
	require.NoError(t, err)
	_, ds1, _ := svc.Current()

	second, err := svc.Load(ctx, "flu-again", []byte(fluTree))
	require.NoError(t, err)
	_, ds2, _ := svc.Current()

	assert.True(t, second.Cached)
	assert.Equal(t, first.SHA256, second.SHA256)
	assert.NotEqual(t, first.ID, second.ID, "each publication gets its own ID")
	assert.Same(t, ds1, ds2)
}

func TestService_FailedLoadKeepsCurrent(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	before, err := svc.Load(ctx, "flu", []byte(fluTree))
	require.NoError(t, err)

	tests := []struct {
		name    string
		dataset string
		data    string
		wantErr error
	}{
		{"invalid name", "../etc", fluTree, ErrInvalidName},
		{"empty name", "", fluTree, ErrInvalidName},
		{"malformed json", "bad", `{"name":`, tree.ErrInvalidDocument},
		{"empty forest", "empty", `[]`, tree.ErrNoTrees},
		{"null child", "nullchild", `{"name":"A","children":[null]}`, tree.ErrInvalidDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Load(ctx, tt.dataset, []byte(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)

			after, _, err := svc.Current()
			require.NoError(t, err)
			assert.Equal(t, before.ID, after.ID)
		})
	}
}

func TestService_MaxNodes(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.MaxNodes = 3
	svc, err := NewService(cfg)
	require.NoError(t, err)

	_, err = svc.Load(context.Background(), "flu", []byte(fluTree))
	assert.ErrorIs(t, err, tree.ErrTooManyNodes)
}

func TestService_LoadFile(t *testing.T) {
	svc := newTestService(t, nil)
	path := filepath.Join(t.TempDir(), "h3n2 global.json")
	require.NoError(t, os.WriteFile(path, []byte(fluTree), 0644))

	t.Run("derives name", func(t *testing.T) {
		info, err := svc.LoadFile(context.Background(), "", path)
		require.NoError(t, err)
		assert.Equal(t, "h3n2-global", info.Name)
	})

	t.Run("explicit name", func(t *testing.T) {
		info, err := svc.LoadFile(context.Background(), "flu", path)
		require.NoError(t, err)
		assert.Equal(t, "flu", info.Name)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := svc.LoadFile(context.Background(), "", filepath.Join(t.TempDir(), "absent.json"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestService_LoadFileConcurrent(t *testing.T) {
	svc := newTestService(t, nil)
	path := filepath.Join(t.TempDir(), "tree.json")
	require.NoError(t, os.WriteFile(path, []byte(fluTree), 0644))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.LoadFile(context.Background(), "", path)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	info, _, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, "tree", info.Name)
}

func TestService_SnapshotAndRestore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	svc := newTestService(t, store)
	loaded, err := svc.Load(ctx, "flu", []byte(fluTree))
	require.NoError(t, err)

	list, current, err := svc.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "flu", current)
	assert.Equal(t, loaded.SHA256, list[0].SHA256)
	assert.Equal(t, 6, list[0].Nodes)

	restarted := newTestService(t, store)
	restored, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "flu", restored.Name)
	assert.Equal(t, loaded.SHA256, restored.SHA256)
	assert.Equal(t, loaded.Summary, restored.Summary)
}

func TestService_RestoreWithoutSnapshot(t *testing.T) {
	svc := newTestService(t, newTestStore(t))
	_, err := svc.Restore(context.Background())
	assert.ErrorIs(t, err, badger.ErrSnapshotNotFound)
}

func TestService_StoreDisabled(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Restore(context.Background())
	assert.ErrorIs(t, err, ErrStoreDisabled)

	_, _, err = svc.Snapshots(context.Background())
	assert.ErrorIs(t, err, ErrStoreDisabled)
}

func TestDatasetNameFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/flu.json", "flu"},
		{"ncov_global.tree.json", "ncov_global.tree"},
		{"h3n2 (6y).json", "h3n2--6y-"},
		{"/data/.hidden.json", "hidden"},
		{"/data/.json", "dataset"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := DatasetNameFromPath(tt.path)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, validation.ValidateDatasetName(got))
		})
	}
}
