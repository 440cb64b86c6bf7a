package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/jlinkcheck/internal/report"
	"github.com/mabhi256/jlinkcheck/utils"
)

const (
	DefaultLabelWidth = 24
	DefaultFilledChar = "█"
	DefaultEmptyChar  = "▱"
	MinBarWidth       = 1
)

// CountBar is one row of a horizontal bar chart
type CountBar struct {
	Label string
	Value int
	Total int // denominator for the bar length
	Style lipgloss.Style
}

// CreateCountBar renders "Label │████▱▱▱│ 12 (40.0%)"
func CreateCountBar(bar CountBar, barAreaWidth, labelWidth int) string {
	pct := 0.0
	if bar.Total > 0 {
		pct = float64(bar.Value) / float64(bar.Total) * 100
	}

	filled := max(MinBarWidth, int(pct*float64(barAreaWidth)/100))
	empty := max(0, barAreaWidth-filled)
	styled := bar.Style.Render(strings.Repeat(DefaultFilledChar, filled) + strings.Repeat(DefaultEmptyChar, empty))

	label := utils.TruncateString(bar.Label, labelWidth)
	return fmt.Sprintf("%-*s │%s│ %d (%4.1f%%)", labelWidth, label, styled, bar.Value, pct)
}

// CreateCountBarChart renders at most limit rows of counts and a line for the remainder
func CreateCountBarChart(title string, counts []report.Count, style lipgloss.Style, width, limit int) string {
	total := 0
	for _, c := range counts {
		total += c.Value
	}

	lines := []string{title, ""}
	barAreaWidth := max(width-DefaultLabelWidth-16, 4)
	for i, c := range counts {
		if i == limit {
			lines = append(lines, utils.MutedStyle.Render(fmt.Sprintf("… %d more", len(counts)-limit)))
			break
		}
		lines = append(lines, CreateCountBar(CountBar{Label: c.Label, Value: c.Value, Total: total, Style: style},
			barAreaWidth, DefaultLabelWidth))
	}
	return strings.Join(lines, "\n")
}
