// Package ui renders line-oriented terminal output.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	InfoColor      = lipgloss.Color("#00D9FF")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)
)

// Printer writes progress to out and failures to errOut.
type Printer struct {
	out     io.Writer
	errOut  io.Writer
	noColor bool
}

// NewPrinter creates a printer over the given writers.
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{out: out, errOut: errOut}
}

var std = NewPrinter(os.Stdout, os.Stderr)

// DisableColor turns off styling for every printer, including fatih/color
// and pterm output.
func DisableColor() {
	std.noColor = true
	color.NoColor = true
	pterm.DisableStyling()
}

// WithoutColor returns a copy of p that never styles its output.
func (p *Printer) WithoutColor() *Printer {
	cp := *p
	cp.noColor = true
	return &cp
}

func (p *Printer) render(style lipgloss.Style, s string) string {
	if p.noColor || color.NoColor {
		return s
	}
	return style.Render(s)
}

// Success prints a success message
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.render(SuccessStyle, "✓ "+fmt.Sprintf(format, args...)))
}

// Error prints an error message
func (p *Printer) Error(format string, args ...interface{}) {
	fmt.Fprintln(p.errOut, p.render(ErrorStyle, "✗ "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.render(WarningStyle, "⚠ "+fmt.Sprintf(format, args...)))
}

// Info prints an info message
func (p *Printer) Info(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.render(InfoStyle, "ℹ "+fmt.Sprintf(format, args...)))
}

// Section prints a section title
func (p *Printer) Section(title string) {
	fmt.Fprintln(p.out, p.render(TitleStyle, "▸ "+title))
}

// Detail prints an indented secondary line
func (p *Printer) Detail(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.render(SecondaryStyle, "    "+fmt.Sprintf(format, args...)))
}

// List prints a bulleted list
func (p *Printer) List(items []string) {
	for _, item := range items {
		fmt.Fprintf(p.out, "  • %s\n", item)
	}
}

// Table prints a table using pterm
func (p *Printer) Table(headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.out, table)
	return err
}

// Status colors a rebuild status word with fatih/color.
func (p *Printer) Status(status string) string {
	if p.noColor {
		return status
	}
	c, ok := statusColors[status]
	if !ok {
		return status
	}
	return c.Sprint(status)
}

var statusColors = map[string]*color.Color{
	"succeeded": color.New(color.FgGreen, color.Bold),
	"failed":    color.New(color.FgRed, color.Bold),
	"skipped":   color.New(color.FgYellow),
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) { std.Error(format, args...) }

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) { std.Warning(format, args...) }
