// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command phylo ingests phylogenetic tree documents and serves the result.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPhylo/pkg/logging"
	"github.com/AleutianAI/AleutianPhylo/pkg/ux"
)

var (
	logLevel string
	logJSON  bool
	logDir   string
)

var rootCmd = &cobra.Command{
	Use:   "phylo",
	Short: "Ingest and serve phylogenetic tree datasets",
	Long: `Phylo turns nested tree documents into a flat, indexed dataset.

Input files hold one tree document or a JSON array of them. Multiple files
are merged in argument order beneath a single synthetic root.

Examples:
  phylo ingest tree.json
  phylo labels h3n2_ha.json h3n2_na.json
  phylo mutations tree.json --top 20 --json
  phylo serve --config ~/.aleutian/phylo.yaml --watch`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (default info)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "",
		"Also write JSON logs to a daily file in this directory")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(labelsCmd)
	rootCmd.AddCommand(mutationsCmd)
	rootCmd.AddCommand(serveCmd)
}

// newLogger builds the process logger from the persistent flags, with
// fallback values from a config file.
func newLogger(level string, json bool, dir string) (*logging.Logger, error) {
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if logDir != "" {
		dir = logDir
	}
	return logging.New(logging.Config{
		Level:   lvl,
		Service: "phylo",
		JSON:    json || logJSON,
		LogDir:  dir,
	}), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		ux.NewPrinter().Error(err.Error())
		os.Exit(1)
	}
}
