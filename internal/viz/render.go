// Package viz renders traces and wavefield snapshots for the terminal.
package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49"))
	fieldStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// shades maps normalized |amplitude| to characters, light to dark.
const shades = " .:-=+*#%@"

// Trace plots one receiver trace.
func Trace(trace []float64, caption string) string {
	if len(trace) == 0 {
		return ""
	}
	chart := asciigraph.Plot(trace, asciigraph.Height(12), asciigraph.Width(72), asciigraph.Caption(caption))
	return graphStyle.Render(chart)
}

// Field renders an (nz x nx) slab as an ASCII amplitude map of at most
// w x h characters, normalized to the slab's own peak.
func Field(p []float64, nz, nx, w, h int) string {
	if w < 1 || h < 1 || nz < 1 || nx < 1 {
		return ""
	}
	if w > nx {
		w = nx
	}
	if h > nz {
		h = nz
	}
	peak := 0.0
	for _, v := range p {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	var sb strings.Builder
	for r := 0; r < h; r++ {
		iz := r * nz / h
		for c := 0; c < w; c++ {
			ix := c * nx / w
			ch := shades[0]
			if peak > 0 {
				a := math.Abs(p[iz*nx+ix]) / peak
				k := int(a * float64(len(shades)-1))
				if k >= len(shades) {
					k = len(shades) - 1
				}
				ch = shades[k]
			}
			sb.WriteByte(ch)
		}
		sb.WriteByte('\n')
	}
	return fieldStyle.Render(sb.String())
}

// Header styles a section heading.
func Header(s string) string { return headerStyle.Render(s) }

// Dim styles secondary text.
func Dim(s string) string { return dimStyle.Render(s) }
