// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for user-supplied identifiers.
//
// Dataset names become storage keys and gene names are matched against
// mutation keys, so both are restricted to a small safe alphabet.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxDatasetNameLength is the longest accepted dataset name.
const MaxDatasetNameLength = 128

// datasetNamePattern matches valid dataset names.
// Allows: letters, digits, dots, underscores, hyphens.
// Must start with a letter or digit.
var datasetNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// genePattern matches gene identifiers such as "HA1", "nuc" or "ORF1a".
var genePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,31}$`)

// ValidateDatasetName validates a dataset name before it is used as a
// storage key.
//
// Valid names:
//   - 1-128 characters
//   - Letters A-Z, a-z and digits 0-9
//   - Dots, underscores and hyphens after the first character
//
// Example:
//
//	if err := validation.ValidateDatasetName(name); err != nil {
//	    return fmt.Errorf("%w: %v", ErrInvalidName, err)
//	}
func ValidateDatasetName(name string) error {
	if name == "" {
		return fmt.Errorf("dataset name cannot be empty")
	}
	if !datasetNamePattern.MatchString(name) {
		return fmt.Errorf("invalid dataset name format: %q (must be 1-%d alphanumeric chars, dots, underscores or hyphens)",
			name, MaxDatasetNameLength)
	}
	return nil
}

// ValidateGene validates a gene identifier used to filter mutations.
func ValidateGene(gene string) error {
	if gene == "" {
		return fmt.Errorf("gene cannot be empty")
	}
	if !genePattern.MatchString(gene) {
		return fmt.Errorf("invalid gene format: %q", gene)
	}
	return nil
}

// SanitizeDatasetName turns arbitrary text (usually a file base name) into
// a valid dataset name. Disallowed characters become hyphens, leading
// punctuation is dropped and the result is truncated. Text with nothing
// usable yields fallback.
//
//	validation.SanitizeDatasetName("h3n2 global", "dataset") // "h3n2-global"
func SanitizeDatasetName(raw, fallback string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(raw))
	name = strings.TrimLeft(name, "._-")
	if len(name) > MaxDatasetNameLength {
		name = name[:MaxDatasetNameLength]
	}
	if name == "" {
		return fallback
	}
	return name
}
