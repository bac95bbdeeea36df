// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phylo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
dataset:
  path: /data/flu.json
  watch: true
  debounce: 1s
storage:
  in_memory: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 256, cfg.Server.MaxBodyMB, "unset fields keep defaults")
	assert.Equal(t, "/data/flu.json", cfg.Dataset.Path)
	assert.True(t, cfg.Dataset.Watch)
	assert.Equal(t, time.Second, cfg.Dataset.Debounce)
	assert.True(t, cfg.Storage.Enabled())
	assert.Equal(t, 5_000_000, cfg.Ingest.MaxNodes)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"unknown level", "logging:\n  level: loud\n"},
		{"watch without path", "dataset:\n  watch: true\n"},
		{"negative max nodes", "ingest:\n  max_nodes: -1\n"},
		{"zero cache", "ingest:\n  cache_size: 0\n"},
		{"unknown exporter", "telemetry:\n  trace_exporter: zipkin\n"},
		{"otlp without endpoint", "telemetry:\n  trace_exporter: otlp\n  otlp_endpoint: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [port"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "phylo.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestStorageConfig_Enabled(t *testing.T) {
	assert.False(t, StorageConfig{}.Enabled())
	assert.True(t, StorageConfig{Path: "/tmp/db"}.Enabled())
	assert.True(t, StorageConfig{InMemory: true}.Enabled())
}
