// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianPhylo/pkg/ux"
	"github.com/AleutianAI/AleutianPhylo/pkg/validation"
	"github.com/AleutianAI/AleutianPhylo/services/phylo/tree"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	outputJSON   bool
	maxNodes     int
	mutationsTop int
	mutationGene string
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Ingest tree files and print a dataset summary",
	Long: `Ingest one or more tree files and print aggregate counts.

Name repairs (missing or duplicate node names) are reported as warnings.

Examples:
  phylo ingest tree.json
  phylo ingest ha.json na.json --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var labelsCmd = &cobra.Command{
	Use:   "labels FILE...",
	Short: "List branch label categories",
	Long: `List the branch label categories found in the input, in first-seen
order. The first entry is always "none".

Examples:
  phylo labels tree.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLabels,
}

var mutationsCmd = &cobra.Command{
	Use:   "mutations FILE...",
	Short: "Count observed mutations",
	Long: `Count every gene:change mutation on every branch, most frequent first.

Examples:
  phylo mutations tree.json
  phylo mutations tree.json --top 10
  phylo mutations tree.json --gene S --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMutations,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	for _, c := range []*cobra.Command{ingestCmd, labelsCmd, mutationsCmd} {
		c.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON for scripting")
		c.Flags().IntVar(&maxNodes, "max-nodes", tree.DefaultMaxNodes, "Maximum dataset size (0 = unlimited)")
	}
	mutationsCmd.Flags().IntVar(&mutationsTop, "top", 0, "Show only the N most frequent (0 = all)")
	mutationsCmd.Flags().StringVar(&mutationGene, "gene", "", "Only count mutations on this gene")
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runIngest(cmd *cobra.Command, args []string) error {
	ds, err := ingestForCommand(cmd, args)
	if err != nil {
		return err
	}
	return writeSummary(cmd.OutOrStdout(), printerFor(cmd), ds, outputJSON)
}

func runLabels(cmd *cobra.Command, args []string) error {
	ds, err := ingestForCommand(cmd, args)
	if err != nil {
		return err
	}
	return writeLabels(cmd.OutOrStdout(), printerFor(cmd), ds, outputJSON)
}

func runMutations(cmd *cobra.Command, args []string) error {
	if mutationGene != "" {
		if err := validation.ValidateGene(mutationGene); err != nil {
			return err
		}
	}
	ds, err := ingestForCommand(cmd, args)
	if err != nil {
		return err
	}
	counts := selectMutations(ds.ObservedMutations, mutationGene, mutationsTop)
	return writeMutations(cmd.OutOrStdout(), printerFor(cmd), counts, outputJSON)
}

func ingestForCommand(cmd *cobra.Command, paths []string) (*tree.Dataset, error) {
	logger, err := newLogger("", false, "")
	if err != nil {
		return nil, err
	}
	defer logger.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ingestFiles(ctx, paths, logger.Slog(), maxNodes)
}

// printerFor styles output only when the command writes to the real
// terminal stdout.
func printerFor(cmd *cobra.Command) *ux.Printer {
	if cmd.OutOrStdout() == os.Stdout {
		return ux.NewPrinter()
	}
	return ux.NewPrinterTo(cmd.OutOrStdout(), cmd.ErrOrStderr(), true)
}

// ingestFiles reads and decodes every file concurrently, then ingests all
// roots in argument order.
func ingestFiles(ctx context.Context, paths []string, logger *slog.Logger, maxNodes int) (*tree.Dataset, error) {
	perFile := make([][]*tree.Document, len(paths))

	g, _ := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			docs, err := tree.DecodeDocuments(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			perFile[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var trees []*tree.Document
	for _, docs := range perFile {
		trees = append(trees, docs...)
	}
	return tree.Ingest(ctx, trees, tree.WithLogger(logger), tree.WithMaxNodes(maxNodes))
}

func selectMutations(tally map[string]int, gene string, top int) []tree.MutationCount {
	if gene != "" {
		filtered := make(map[string]int)
		for k, v := range tally {
			if (tree.MutationCount{Key: k}).Gene() == gene {
				filtered[k] = v
			}
		}
		tally = filtered
	}
	return tree.TopMutations(tally, top)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSummary(w io.Writer, p *ux.Printer, ds *tree.Dataset, asJSON bool) error {
	summary := ds.Summary()
	if asJSON {
		return writeJSON(w, struct {
			tree.Summary
			NodeAttrKeys []string       `json:"node_attr_keys"`
			Warnings     []tree.Warning `json:"warnings,omitempty"`
		}{summary, ds.NodeAttrKeys, ds.Warnings})
	}

	p.KeyValues("Dataset", []ux.KV{
		{Key: "trees", Value: summary.Trees},
		{Key: "nodes", Value: summary.Nodes},
		{Key: "tips", Value: summary.Tips},
		{Key: "branch_labels", Value: summary.BranchLabels},
		{Key: "distinct_mutations", Value: summary.DistinctMutations},
		{Key: "mutation_events", Value: summary.MutationEvents},
		{Key: "vaccines", Value: summary.Vaccines},
		{Key: "warnings", Value: summary.Warnings},
	})
	for _, warn := range ds.Warnings {
		p.Warning(fmt.Sprintf("node %d: %s %q renamed to %q", warn.Index, warn.Kind, warn.Original, warn.Name))
	}
	return nil
}

func writeLabels(w io.Writer, p *ux.Printer, ds *tree.Dataset, asJSON bool) error {
	if asJSON {
		return writeJSON(w, ds.AvailableBranchLabels)
	}
	rows := make([][]string, len(ds.AvailableBranchLabels))
	for i, l := range ds.AvailableBranchLabels {
		rows[i] = []string{l}
	}
	p.Table([]string{"LABEL"}, rows)
	return nil
}

func writeMutations(w io.Writer, p *ux.Printer, counts []tree.MutationCount, asJSON bool) error {
	if asJSON {
		return writeJSON(w, counts)
	}
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{c.Key, strconv.Itoa(c.Count)}
	}
	p.Table([]string{"MUTATION", "COUNT"}, rows)
	return nil
}
