// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the Aleutian CLIs.
//
// A Printer renders styled output with lipgloss when writing to a
// terminal and plain, tab-separated output otherwise, so the same command
// is pleasant interactively and parseable in a pipe.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Key     lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Key:     lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorTealBright),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	Header: lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright).Padding(0, 1),
	Cell:   lipgloss.NewStyle().Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes status lines, key/value blocks and tables.
type Printer struct {
	out   io.Writer
	errw  io.Writer
	plain bool
}

// NewPrinter returns a Printer for stdout and stderr, styled only when
// stdout is a terminal.
func NewPrinter() *Printer {
	fd := os.Stdout.Fd()
	plain := !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	return NewPrinterTo(os.Stdout, os.Stderr, plain)
}

// NewPrinterTo returns a Printer over explicit writers.
func NewPrinterTo(out, errw io.Writer, plain bool) *Printer {
	return &Printer{out: out, errw: errw, plain: plain}
}

// Plain reports whether output is unstyled.
func (p *Printer) Plain() bool {
	return p.plain
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	if p.plain {
		fmt.Fprintf(p.out, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning to stderr.
func (p *Printer) Warning(text string) {
	if p.plain {
		fmt.Fprintf(p.errw, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.errw, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error to stderr.
func (p *Printer) Error(text string) {
	if p.plain {
		fmt.Fprintf(p.errw, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.errw, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// KV is one row of a key/value block.
type KV struct {
	Key   string
	Value any
}

// KeyValues prints a titled block of aligned key/value pairs.
func (p *Printer) KeyValues(title string, rows []KV) {
	if p.plain {
		for _, r := range rows {
			fmt.Fprintf(p.out, "%s\t%v\n", r.Key, r.Value)
		}
		return
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r.Key))
	}
	var b strings.Builder
	b.WriteString(Styles.Title.Render(title))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(Styles.Key.Render(fmt.Sprintf("%-*s", width, r.Key)))
		b.WriteString("  ")
		b.WriteString(fmt.Sprint(r.Value))
	}
	fmt.Fprintln(p.out, Styles.Box.Render(b.String()))
}

// Table prints rows under headers.
func (p *Printer) Table(headers []string, rows [][]string) {
	if p.plain {
		for _, r := range rows {
			fmt.Fprintln(p.out, strings.Join(r, "\t"))
		}
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorTealDeep)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Header
			}
			return Styles.Cell
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.out, t.Render())
}
