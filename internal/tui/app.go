package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/jlinkcheck/utils"
)

const PageSize = 10 // Lines scrolled by page up/down on the details tab

// Header and help bar rows
const chromeHeight = 4

func NewModel(input Input) *Model {
	conflicts := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	conflicts.SetShowStatusBar(true)
	conflicts.SetShowHelp(false)
	conflicts.SetFilteringEnabled(true)

	m := &Model{
		input:      input,
		currentTab: DashboardTab,
		filter:     AllCategories,
		conflicts:  conflicts,
		keys:       DefaultKeyMap(),
		help:       help.New(),
	}
	m.refreshConflicts()
	return m
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.conflicts.SetSize(msg.Width, max(msg.Height-chromeHeight-2, 1))
		return m, nil

	case tea.KeyMsg:
		// Typing into the list filter takes every key
		if m.currentTab == ConflictsTab && m.conflicts.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.conflicts, cmd = m.conflicts.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Tab1):
			m.switchTab(DashboardTab)
			return m, nil
		case key.Matches(msg, m.keys.Tab2):
			m.switchTab(ConflictsTab)
			return m, nil
		case key.Matches(msg, m.keys.Tab3):
			m.switchTab(DetailsTab)
			return m, nil
		case key.Matches(msg, m.keys.NextTab):
			m.switchTab(utils.GetNextEnum(m.currentTab, DetailsTab))
			return m, nil
		case key.Matches(msg, m.keys.PrevTab):
			m.switchTab(utils.GetPrevEnum(m.currentTab, DetailsTab))
			return m, nil
		}

		return m.handleTabSpecificKeys(msg)
	}

	if m.currentTab == ConflictsTab {
		var cmd tea.Cmd
		m.conflicts, cmd = m.conflicts.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) switchTab(tab TabType) {
	if tab == DetailsTab && m.selected == nil {
		m.selectCurrent()
	}
	m.currentTab = tab
	m.scroll = 0
}

func (m *Model) handleTabSpecificKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.currentTab {
	case ConflictsTab:
		return m.handleConflictsKeys(msg)
	case DetailsTab:
		return m.handleDetailsKeys(msg)
	}
	return m, nil
}

func (m *Model) handleConflictsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Left):
		utils.CycleEnumPtr(&m.filter, -1, FieldsOnly)
		m.refreshConflicts()
		return m, nil
	case key.Matches(msg, m.keys.Right):
		utils.CycleEnumPtr(&m.filter, 1, FieldsOnly)
		m.refreshConflicts()
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		if m.selectCurrent() {
			m.currentTab = DetailsTab
			m.scroll = 0
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.conflicts, cmd = m.conflicts.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.currentTab = ConflictsTab
	case key.Matches(msg, m.keys.Up):
		if m.scroll > 0 {
			m.scroll--
		}
	case key.Matches(msg, m.keys.Down):
		// Bounded in rendering
		m.scroll++
	case key.Matches(msg, m.keys.PgUp):
		m.scroll = max(m.scroll-PageSize, 0)
	case key.Matches(msg, m.keys.PgDown):
		m.scroll += PageSize
	}
	return m, nil
}

// selectCurrent remembers the highlighted conflict for the details tab
func (m *Model) selectCurrent() bool {
	item, ok := m.conflicts.SelectedItem().(conflictItem)
	if !ok {
		return false
	}
	c := item.conflict
	m.selected = &c
	return true
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content string
	switch m.currentTab {
	case DashboardTab:
		content = m.renderDashboard()
	case ConflictsTab:
		content = m.renderConflicts()
	case DetailsTab:
		content = m.renderDetails()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		content,
		utils.HelpBarStyle.Width(m.width).Render(m.help.View(m.keys)),
	)
}

func (m *Model) renderHeader() string {
	tabIcons := []string{"📊", "🔗", "🔍"}
	tabNames := []string{"Dashboard", "Conflicts", "Details"}

	tabs := []string{}
	for i, name := range tabNames {
		style := utils.TabInactiveStyle
		indicator := " "
		if TabType(i) == m.currentTab {
			style = utils.TabActiveStyle
			indicator = "●"
		}
		tabText := fmt.Sprintf("%s %s %s [%d]", indicator, tabIcons[i], name, i+1)
		tabs = append(tabs, style.Render(tabText))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		strings.Join(tabs, "  "),
		strings.Repeat("─", m.width),
	)
}

// Run opens the browser and blocks until the user quits
func Run(input Input) error {
	program := tea.NewProgram(
		NewModel(input),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err := program.Run()
	return err
}
