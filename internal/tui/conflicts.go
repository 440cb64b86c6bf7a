package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/jlinkcheck/internal/linkage"
	"github.com/mabhi256/jlinkcheck/internal/report"
	"github.com/mabhi256/jlinkcheck/utils"
)

// conflictItem adapts a conflict to the list widget
type conflictItem struct {
	conflict linkage.Conflict
}

func (i conflictItem) FilterValue() string {
	c := i.conflict
	return c.Dependency.Target() + " " + c.Dependency.Source() + " " + c.UsedBy
}

func (i conflictItem) Title() string {
	return utils.GetSeverityIcon(report.Severity(i.conflict.Category)) + " " + i.conflict.Reason
}

func (i conflictItem) Description() string {
	return fmt.Sprintf("%s | used by %s", i.conflict.Dependency.Source(), i.conflict.UsedBy)
}

// refreshConflicts reloads the list for the current category filter
func (m *Model) refreshConflicts() {
	var items []list.Item
	for _, c := range m.input.Conflicts {
		if m.filter.Matches(c.Category) {
			items = append(items, conflictItem{conflict: c})
		}
	}
	m.conflicts.SetItems(items)
	m.conflicts.ResetSelected()
	m.conflicts.Title = fmt.Sprintf("Conflicts (%s)", m.filter)
}

func (m *Model) renderConflicts() string {
	if len(m.input.Conflicts) == 0 {
		return renderNoConflicts()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderConflictsHeader(),
		"",
		m.conflicts.View(),
	)
}

func (m *Model) renderConflictsHeader() string {
	counts := report.CountByCategory(m.input.Conflicts)
	filters := []CategoryFilter{ClassesOnly, MethodsOnly, FieldsOnly}

	allStyle := utils.TabInactiveStyle
	if m.filter == AllCategories {
		allStyle = utils.TabActiveStyle
	}
	parts := []string{allStyle.Render(fmt.Sprintf("All: %d", len(m.input.Conflicts)))}

	for i, category := range linkage.Categories() {
		style := utils.TabInactiveStyle
		if m.filter == filters[i] {
			style = utils.TabActiveStyle
		}
		icon := utils.GetSeverityIcon(report.Severity(category))
		parts = append(parts, style.Render(fmt.Sprintf("%s %s: %d", icon, counts[i].Label, counts[i].Value)))
	}

	return strings.Join(parts, "  ")
}

func renderNoConflicts() string {
	return utils.GoodStyle.Render("✅ No linkage conflicts found!\n\nEvery reachable reference resolves against the classpath.")
}
