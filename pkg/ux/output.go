// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders command-line output for the solver tools.
//
// A Printer writes either styled output (lipgloss) for terminals or plain
// "KEY: value" lines for scripts. DetectMode picks the mode from the
// destination file.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles holds the pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Label:   lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconUndo    Icon = "↩"
)

// Render returns the icon with its status color.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconUndo:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Mode selects how a Printer formats output.
type Mode int

const (
	// ModeStyled renders colors, icons and boxes.
	ModeStyled Mode = iota

	// ModeMachine renders plain, line-oriented text.
	ModeMachine
)

// ParseMode maps "styled" or "machine" to a Mode. Anything else is styled.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "machine") {
		return ModeMachine
	}
	return ModeStyled
}

// DetectMode returns ModeStyled when f is a terminal and ModeMachine
// otherwise. SOLVER_OUTPUT=machine forces machine mode.
func DetectMode(f *os.File) Mode {
	if ParseMode(os.Getenv("SOLVER_OUTPUT")) == ModeMachine {
		return ModeMachine
	}
	if f == nil {
		return ModeMachine
	}
	fd := f.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return ModeStyled
	}
	return ModeMachine
}

// Printer writes formatted output.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode { return p.mode }

// Title prints a heading. Machine mode omits it.
func (p *Printer) Title(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Field prints a "label: value" pair.
func (p *Printer) Field(label string, value any) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s=%v\n", label, value)
		return
	}
	fmt.Fprintf(p.w, "%s %v\n", Styles.Label.Render(label+":"), value)
}

// Item prints a list entry prefixed with an icon.
func (p *Printer) Item(icon Icon, text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s\t%s\n", icon, text)
		return
	}
	fmt.Fprintf(p.w, "  %s %s\n", icon.Render(), text)
}

// Box prints a titled block. Machine mode prints "title: line" per line.
func (p *Printer) Box(title string, lines []string) {
	if p.mode == ModeMachine {
		for _, line := range lines {
			fmt.Fprintf(p.w, "%s: %s\n", title, line)
		}
		return
	}
	body := Styles.Title.Render(title)
	if len(lines) > 0 {
		body += "\n" + strings.Join(lines, "\n")
	}
	fmt.Fprintln(p.w, Styles.Box.Render(body))
}
