package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// SearchModel is the one-line filter prompt shown under the list.
type SearchModel struct {
	input textinput.Model
}

func NewSearchModel(value string) SearchModel {
	ti := textinput.New()
	ti.Prompt = "Filter: "
	ti.Placeholder = "type to fuzzy match"
	ti.CharLimit = 128
	ti.SetValue(value)
	return SearchModel{input: ti}
}

func (m *SearchModel) Focus() tea.Cmd {
	return m.input.Focus()
}

func (m SearchModel) Value() string {
	return m.input.Value()
}

func (m SearchModel) Update(msg tea.Msg) (SearchModel, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m SearchModel) View() string {
	return m.input.View()
}
