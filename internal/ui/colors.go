package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Default colors for human-facing hints.
const (
	ColorTitle = "#7D56F4"
	ColorOK    = "#04B575"
	ColorErr   = "#FF0000"
	ColorWarn  = "#FFA500"
	ColorHelp  = "#626262"
)

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
//
// Styles are created from a renderer bound to the hint writer, so color detection follows stderr rather than
// stdout (which only ever carries JSON).
type Palette struct {
	out   io.Writer
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

// NewPalette creates a Palette writing to w with the default colors. w defaults to [os.Stderr].
func NewPalette(w io.Writer) *Palette {
	if w == nil {
		w = os.Stderr
	}
	r := lipgloss.NewRenderer(w)
	return &Palette{
		out:   w,
		title: NewBold(r, ColorTitle),
		ok:    NewBold(r, ColorOK),
		err:   NewBold(r, ColorErr),
		warn:  NewStyle(r, ColorWarn),
		help:  NewEm(r, ColorHelp),
	}
}

func NewStyle(r *lipgloss.Renderer, fg string) lipgloss.Style {
	return r.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(r *lipgloss.Renderer, fg string) lipgloss.Style {
	return NewStyle(r, fg).Bold(true)
}

func NewEm(r *lipgloss.Renderer, fg string) lipgloss.Style {
	return NewStyle(r, fg).Italic(true)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

// Writer returns the writer hints go to.
func (p *Palette) Writer() io.Writer { return p.out }

// Hint writes one styled line. Write errors are ignored since hints are best effort.
func (p *Palette) Hint(style func(string) string, format string, args ...any) {
	fmt.Fprintln(p.out, style(fmt.Sprintf(format, args...)))
}
