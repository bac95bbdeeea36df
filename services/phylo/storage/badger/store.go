// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	snapshotPrefix = "phylo/snapshot/"
	rawSuffix      = "/raw"
	metaSuffix     = "/meta"
	currentKey     = "phylo/current"
)

// ErrSnapshotNotFound is returned when no snapshot exists under a name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot describes one stored dataset.
type Snapshot struct {
	Name    string    `json:"name"`
	ID      string    `json:"id"`
	SHA256  string    `json:"sha256"`
	Size    int       `json:"size"`
	Nodes   int       `json:"nodes"`
	SavedAt time.Time `json:"saved_at"`
}

// SnapshotStore keeps the raw input of each named dataset and a pointer
// to the one that was current most recently.
//
// Thread Safety: Safe for concurrent use.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore wraps an open database.
func NewSnapshotStore(db *DB) (*SnapshotStore, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &SnapshotStore{db: db}, nil
}

func rawKey(name string) []byte  { return []byte(snapshotPrefix + name + rawSuffix) }
func metaKey(name string) []byte { return []byte(snapshotPrefix + name + metaSuffix) }

// Save stores raw under meta.Name and marks it current. An existing
// snapshot with the same name is replaced.
func (s *SnapshotStore) Save(ctx context.Context, meta Snapshot, raw []byte) error {
	if meta.Name == "" {
		return errors.New("snapshot name must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode snapshot meta: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(rawKey(meta.Name), raw); err != nil {
			return err
		}
		if err := txn.Set(metaKey(meta.Name), encoded); err != nil {
			return err
		}
		return txn.Set([]byte(currentKey), []byte(meta.Name))
	})
}

// Load returns the snapshot stored under name.
func (s *SnapshotStore) Load(ctx context.Context, name string) (Snapshot, []byte, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, nil, fmt.Errorf("context cancelled: %w", err)
	}

	var meta Snapshot
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(name))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return fmt.Errorf("decode snapshot meta: %w", err)
		}

		item, err = txn.Get(rawKey(name))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Snapshot{}, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return Snapshot{}, nil, err
	}
	return meta, raw, nil
}

// Current returns the name of the most recently saved snapshot.
func (s *SnapshotStore) Current(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	var name string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(currentKey))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		name = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrSnapshotNotFound
	}
	return name, err
}

// List returns the metadata of every stored snapshot, ordered by name.
func (s *SnapshotStore) List(ctx context.Context) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var out []Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(snapshotPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), metaSuffix) {
				continue
			}
			var meta Snapshot
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return fmt.Errorf("decode snapshot meta %s: %w", item.Key(), err)
			}
			out = append(out, meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a snapshot. Deleting the current snapshot clears the
// current pointer.
func (s *SnapshotStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
			}
			return err
		}
		if err := txn.Delete(rawKey(name)); err != nil {
			return err
		}
		if err := txn.Delete(metaKey(name)); err != nil {
			return err
		}

		item, err := txn.Get([]byte(currentKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		current, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(current) == name {
			return txn.Delete([]byte(currentKey))
		}
		return nil
	})
}
