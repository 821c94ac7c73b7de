package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style

	barStart string
	barEnd   string
}

func NewPalette(t, s, e, w string) *Palette {
	return &Palette{
		title:    NewBold(t),
		ok:       NewBold(s),
		err:      NewBold(e),
		warn:     NewStyle(w),
		barStart: t,
		barEnd:   s,
	}
}

// Message colors a reporter message by what it announces.
func (p *Palette) Message(msg string) string {
	switch {
	case hasAnyPrefix(msg, "Error"):
		return p.err.Render(msg)
	case hasAnyPrefix(msg, "Invalid", "Missing"):
		return p.warn.Render(msg)
	default:
		return msg
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}
