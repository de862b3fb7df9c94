package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorDim    = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "28", Dark: "40"}
	colorRed    = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorYellow = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}
)

const (
	markSuccess = "✓"
	markWarning = "⚠"
	markError   = "✗"

	wideRule   = 80
	narrowRule = 60
)

// styles are bound to a renderer for the destination writer so that
// non-terminal output such as files and test buffers stays plain text.
type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	hint    lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	error   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorCyan),
		label:   r.NewStyle().Foreground(colorDim),
		hint:    r.NewStyle().Foreground(colorDim),
		success: r.NewStyle().Foreground(colorGreen),
		warning: r.NewStyle().Bold(true).Foreground(colorYellow),
		error:   r.NewStyle().Bold(true).Foreground(colorRed),
	}
}

func rule(ch string, width int) string {
	return strings.Repeat(ch, width)
}
