package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/jlinkcheck/internal/linkage"
	"github.com/mabhi256/jlinkcheck/internal/report"
	"github.com/mabhi256/jlinkcheck/utils"
)

const detailsKeyWidth = 14

func (m *Model) renderDetails() string {
	if m.selected == nil {
		return utils.MutedStyle.Render("No conflict selected. Pick one on the conflicts tab and press enter.")
	}

	lines := detailLines(*m.selected, m.input.Reachable, m.width)

	// Scroll within the available height
	available := max(m.height-chromeHeight-2, 1)
	if m.scroll > len(lines)-available {
		m.scroll = max(len(lines)-available, 0)
	}
	end := min(m.scroll+available, len(lines))
	return strings.Join(lines[m.scroll:end], "\n")
}

func detailLines(c linkage.Conflict, reachable *linkage.ReachableSet, width int) []string {
	dep := c.Dependency
	style := utils.GetSeverityStyle(report.Severity(c.Category))

	lines := []string{
		style.Render(fmt.Sprintf("%s %s", utils.GetSeverityIcon(report.Severity(c.Category)), c.Category.Title())),
		"",
	}
	for _, line := range utils.WrapText(c.Reason, max(width-4, 10)) {
		lines = append(lines, utils.TextStyle.Render(line))
	}
	lines = append(lines, "",
		utils.FormatKeyValue("Source", dep.Source(), detailsKeyWidth),
		utils.FormatKeyValue("Target", dep.Target(), detailsKeyWidth),
	)
	if dep.TargetMethod != nil {
		lines = append(lines, utils.FormatKeyValue("Signature", dep.TargetMethod.String(), detailsKeyWidth))
	}
	if dep.TargetField != nil {
		lines = append(lines, utils.FormatKeyValue("Field type", dep.TargetField.Type().String(), detailsKeyWidth))
	}
	lines = append(lines,
		utils.FormatKeyValue("Used by", c.UsedBy, detailsKeyWidth),
		utils.FormatKeyValue("Exists in", c.ExistsIn, detailsKeyWidth),
	)

	if reachable == nil {
		return lines
	}
	path := reachable.PathTo(dep.FromClass)
	if len(path) == 0 {
		return lines
	}

	lines = append(lines, "", utils.TitleStyle.Render("Why this class is checked"))
	for i, step := range path {
		prefix := "  └─"
		if i < len(path)-1 {
			prefix = "  ├─"
		}
		via := lipgloss.NewStyle().Width(9).Render(step.Via.String())
		lines = append(lines, fmt.Sprintf("%s %s %s", prefix, utils.MutedStyle.Render(via), step.Class))
	}
	return lines
}
