package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/jlinkcheck/internal/linkage"
	"github.com/mabhi256/jlinkcheck/internal/report"
	"github.com/mabhi256/jlinkcheck/utils"
)

// renderDashboard renders the dashboard view
func (m *Model) renderDashboard() string {
	s := m.input.Summary

	info := fmt.Sprintf("Project: %s  Artifacts: %d  Duration: %s",
		s.Project, len(s.Checked), utils.FormatDuration(s.Elapsed))
	headerLine := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Render(info)

	// Two columns
	height := m.height - chromeHeight - 2
	leftWidth := m.width/2 - 2
	rightWidth := m.width - leftWidth - 4

	left := strings.Join([]string{
		renderOverview(s, len(m.input.Conflicts), leftWidth),
		"",
		renderCategoryChart(m.input.Conflicts, leftWidth, max(height-9, 6)),
	}, "\n")
	right := CreateCountBarChart(utils.TitleStyle.Render("Conflicts by Artifact"),
		report.CountByArtifact(m.input.Conflicts), utils.WarningStyle, rightWidth, max(height-2, 1))

	return lipgloss.JoinVertical(lipgloss.Left,
		headerLine,
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	)
}

func renderOverview(s report.Summary, conflicts, width int) string {
	title := utils.TitleStyle.Render("Overview")

	status := utils.GetSeverityIcon("good")
	if conflicts > 0 {
		status = utils.GetSeverityIcon("critical")
	}

	lines := []string{
		fmt.Sprintf("• Known classes: %d", s.KnownClasses),
		fmt.Sprintf("• Reachable classes: %d", s.ReachableClasses),
		fmt.Sprintf("• Checked classes: %d", s.CheckedClasses),
		fmt.Sprintf("• Conflicts: %d %s", conflicts, status),
	}
	if s.Filtered > 0 {
		lines = append(lines, utils.MutedStyle.Render(fmt.Sprintf("• Hidden by filters: %d", s.Filtered)))
	}
	if s.KnownClasses > 0 {
		pct := float64(s.ReachableClasses) / float64(s.KnownClasses)
		bar := utils.CreateProgressBarWithLabel(pct, max(width-4, 10), utils.InfoColor, fmt.Sprintf("%.0f%% reachable", pct*100))
		lines = append(lines, "", bar)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"))
}

func renderCategoryChart(conflicts []linkage.Conflict, width, height int) string {
	title := utils.TitleStyle.Render("Conflicts by Category")
	if len(conflicts) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, "No conflicts")
	}

	styles := []lipgloss.Style{utils.CriticalStyle, utils.WarningStyle, utils.InfoStyle}
	counts := report.CountByCategory(conflicts)

	data := make([]barchart.BarData, len(counts))
	for i, c := range counts {
		data[i] = barchart.BarData{
			Label: shortCategory(linkage.Categories()[i]),
			Values: []barchart.BarValue{
				{Name: c.Label, Value: float64(c.Value), Style: styles[i]},
			},
		}
	}

	chart := barchart.New(max(width, 12), height)
	chart.PushAll(data)
	chart.Draw()

	var legend []string
	for i, c := range counts {
		legend = append(legend, styles[i].Render(fmt.Sprintf("%s %d", shortCategory(linkage.Categories()[i]), c.Value)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, chart.View(), strings.Join(legend, "  "))
}

func shortCategory(c linkage.Category) string {
	switch c {
	case linkage.ClassNotFound:
		return "class"
	case linkage.MethodSignatureNotFound:
		return "method"
	default:
		return "field"
	}
}
