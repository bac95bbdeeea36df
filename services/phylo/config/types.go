// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the phylo service configuration from YAML.
package config

import "time"

// Config is the complete phylo configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Storage   StorageConfig   `yaml:"storage"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Port is the listen port.
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// Debug enables gin debug mode and request logging.
	Debug bool `yaml:"debug"`

	// UploadRate limits dataset uploads per second. 0 disables the limit.
	UploadRate float64 `yaml:"upload_rate" validate:"gte=0"`

	// UploadBurst is the number of uploads allowed in a burst.
	UploadBurst int `yaml:"upload_burst" validate:"gte=0"`

	// MaxBodyMB caps the size of an upload request body.
	MaxBodyMB int `yaml:"max_body_mb" validate:"min=1,max=4096"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// DatasetConfig names the dataset file loaded at startup.
type DatasetConfig struct {
	// Path is a JSON file holding one tree document or an array of them.
	Path string `yaml:"path" validate:"required_if=Watch true"`

	// Name is the dataset name; defaults to the file's base name.
	Name string `yaml:"name" validate:"omitempty,max=128"`

	// Watch reloads the dataset when the file changes.
	Watch bool `yaml:"watch"`

	// Debounce is how long to wait for writes to settle before reloading.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// StorageConfig configures the BadgerDB snapshot store.
// An empty Path with InMemory false disables the store.
type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// Enabled reports whether a store should be opened.
func (s StorageConfig) Enabled() bool {
	return s.InMemory || s.Path != ""
}

// IngestConfig configures tree ingestion.
type IngestConfig struct {
	// MaxNodes caps a dataset's size. 0 disables the limit.
	MaxNodes int `yaml:"max_nodes" validate:"gte=0"`

	// CacheSize is how many ingested datasets are kept for identical input.
	CacheSize int `yaml:"cache_size" validate:"min=1,max=1024"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	TraceExporter  string  `yaml:"trace_exporter" validate:"oneof=otlp stdout none"`
	MetricExporter string  `yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
	SampleRate     float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			UploadRate:  2,
			UploadBurst: 4,
			MaxBodyMB:   256,
		},
		Logging: LoggingConfig{Level: "info"},
		Dataset: DatasetConfig{Debounce: 250 * time.Millisecond},
		Ingest: IngestConfig{
			MaxNodes:  5_000_000,
			CacheSize: 8,
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
			SampleRate:     1,
		},
	}
}
