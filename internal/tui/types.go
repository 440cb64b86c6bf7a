package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"

	"github.com/mabhi256/jlinkcheck/internal/linkage"
	"github.com/mabhi256/jlinkcheck/internal/report"
)

// Input is what a finished run hands to the browser
type Input struct {
	Summary   report.Summary
	Conflicts []linkage.Conflict
	Reachable *linkage.ReachableSet // optional, enables the reachability path in details
}

type Model struct {
	// Data
	input Input

	// UI State
	currentTab TabType
	width      int
	height     int

	filter    CategoryFilter
	conflicts list.Model
	selected  *linkage.Conflict
	scroll    int

	// Key bindings
	keys KeyMap
	help help.Model
}

type TabType int

const (
	DashboardTab TabType = iota
	ConflictsTab
	DetailsTab
)

// CategoryFilter narrows the conflicts tab to one category
type CategoryFilter int

const (
	AllCategories CategoryFilter = iota
	ClassesOnly
	MethodsOnly
	FieldsOnly
)

func (f CategoryFilter) String() string {
	switch f {
	case ClassesOnly:
		return "classes"
	case MethodsOnly:
		return "methods"
	case FieldsOnly:
		return "fields"
	default:
		return "all"
	}
}

func (f CategoryFilter) Matches(c linkage.Category) bool {
	switch f {
	case ClassesOnly:
		return c == linkage.ClassNotFound
	case MethodsOnly:
		return c == linkage.MethodSignatureNotFound
	case FieldsOnly:
		return c == linkage.FieldNotFound
	default:
		return true
	}
}

type KeyMap struct {
	Tab1    key.Binding
	Tab2    key.Binding
	Tab3    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Left    key.Binding
	Right   key.Binding
	Up      key.Binding
	Down    key.Binding
	PgUp    key.Binding
	PgDown  key.Binding
	Enter   key.Binding
	Back    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func k(keys []string, help, desc string) key.Binding {
	return key.NewBinding(
		key.WithKeys(keys...),
		key.WithHelp(help, desc),
	)
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab1:    k([]string{"1"}, "1", "dashboard"),
		Tab2:    k([]string{"2"}, "2", "conflicts"),
		Tab3:    k([]string{"3"}, "3", "details"),
		NextTab: k([]string{"tab"}, "tab", "next tab"),
		PrevTab: k([]string{"shift+tab"}, "shift+tab", "prev tab"),
		Left:    k([]string{"left", "h"}, "←/h", "prev category"),
		Right:   k([]string{"right", "l"}, "→/l", "next category"),
		Up:      k([]string{"up", "k"}, "↑/k", "up"),
		Down:    k([]string{"down", "j"}, "↓/j", "down"),
		PgUp:    k([]string{"pgup", "b"}, "pgup/b", "page up"),
		PgDown:  k([]string{"pgdown", "f"}, "pgdn/f", "page down"),
		Enter:   k([]string{"enter"}, "enter", "details"),
		Back:    k([]string{"esc"}, "esc", "back"),
		Help:    k([]string{"?"}, "?", "more help"),
		Quit:    k([]string{"q", "ctrl+c"}, "q", "quit"),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Enter, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PgUp, k.PgDown, k.Left, k.Right},
		{k.Tab1, k.Tab2, k.Tab3, k.NextTab, k.PrevTab},
		{k.Enter, k.Back, k.Help, k.Quit},
	}
}
