package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/JesseCastro/bqutil/internal/bigquery"
)

const maxVisibleItems = 20

// DatasetListModel shows either the project's datasets or the tables of the
// opened dataset.
type DatasetListModel struct {
	datasets        []*bigquery.Dataset
	tables          []*bigquery.Table
	selectedDataset *bigquery.Dataset
	selectedTable   *bigquery.Table
	showingTables   bool
	loading         bool
	cursor          int
	viewOffset      int
	filter          string
	// indices into datasets or tables, in match order
	visible []int

	datasetOpened bool
	tableSelected bool
}

func NewDatasetListModel() DatasetListModel {
	return DatasetListModel{loading: true}
}

func (m DatasetListModel) Update(msg tea.Msg) (DatasetListModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKeypress(msg), nil
	}
	return m, nil
}

func (m DatasetListModel) handleKeypress(msg tea.KeyMsg) DatasetListModel {
	keys := DefaultKeyMap()
	n := len(m.visible)
	if n == 0 {
		return m
	}

	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, keys.Down):
		if m.cursor < n-1 {
			m.cursor++
		}

	case key.Matches(msg, keys.VimTop, keys.Top):
		m.cursor = 0

	case key.Matches(msg, keys.VimBottom, keys.Bottom):
		m.cursor = n - 1

	case key.Matches(msg, keys.PageUp):
		m.cursor = max(m.cursor-10, 0)

	case key.Matches(msg, keys.PageDown):
		m.cursor = min(m.cursor+10, n-1)

	case key.Matches(msg, keys.Enter, keys.Right):
		if m.showingTables {
			m.selectedTable = m.current()
			m.tableSelected = m.selectedTable != nil
		} else {
			m.openDataset(m.currentDataset())
		}

	case key.Matches(msg, keys.Left):
		if m.showingTables {
			m.closeDataset()
		}
	}

	m.ensureCursorVisible()
	return m
}

func (m *DatasetListModel) openDataset(d *bigquery.Dataset) {
	if d == nil {
		return
	}
	m.selectedDataset = d
	m.selectedTable = nil
	m.showingTables = true
	m.tables = nil
	m.cursor, m.viewOffset = 0, 0
	m.loading = true
	m.datasetOpened = true
	m.setFilter("")
}

func (m *DatasetListModel) closeDataset() {
	prev := m.selectedDataset
	m.showingTables = false
	m.selectedTable = nil
	m.tables = nil
	m.loading = false
	m.setFilter("")
	for i, idx := range m.visible {
		if prev != nil && m.datasets[idx].ID == prev.ID {
			m.cursor = i
		}
	}
	m.ensureCursorVisible()
}

func (m *DatasetListModel) setDatasets(datasets []*bigquery.Dataset) {
	m.datasets = datasets
	if !m.showingTables {
		m.loading = false
	}
	m.applyFilter()
}

func (m *DatasetListModel) setTables(tables []*bigquery.Table) {
	m.tables = tables
	m.loading = false
	m.applyFilter()
}

func (m *DatasetListModel) setFilter(filter string) {
	m.filter = strings.TrimSpace(filter)
	m.applyFilter()
}

// applyFilter recomputes the visible items with a fuzzy match on their IDs.
func (m *DatasetListModel) applyFilter() {
	ids := m.itemIDs()

	visible := make([]int, 0, len(ids))
	if m.filter == "" {
		for i := range ids {
			visible = append(visible, i)
		}
	} else {
		for _, match := range fuzzy.Find(m.filter, ids) {
			visible = append(visible, match.Index)
		}
	}
	m.visible = visible

	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
	m.ensureCursorVisible()
}

func (m DatasetListModel) itemIDs() []string {
	var ids []string
	if m.showingTables {
		for _, t := range m.tables {
			ids = append(ids, t.ID)
		}
		return ids
	}
	for _, d := range m.datasets {
		ids = append(ids, d.ID)
	}
	return ids
}

func (m DatasetListModel) currentDataset() *bigquery.Dataset {
	if m.showingTables || m.cursor >= len(m.visible) {
		return nil
	}
	return m.datasets[m.visible[m.cursor]]
}

// current returns the table under the cursor.
func (m DatasetListModel) current() *bigquery.Table {
	if !m.showingTables || m.cursor >= len(m.visible) {
		return nil
	}
	return m.tables[m.visible[m.cursor]]
}

func (m *DatasetListModel) ensureCursorVisible() {
	if m.cursor < m.viewOffset {
		m.viewOffset = m.cursor
	}
	if m.cursor >= m.viewOffset+maxVisibleItems {
		m.viewOffset = m.cursor - maxVisibleItems + 1
	}
	if m.viewOffset < 0 {
		m.viewOffset = 0
	}
}

func (m DatasetListModel) View() string {
	var content strings.Builder

	title := "📊 Datasets"
	if m.showingTables {
		title = fmt.Sprintf("📋 Tables in %s", m.selectedDataset.ID)
	}
	content.WriteString(HeaderStyle.Render(title) + "\n\n")

	if m.filter != "" {
		content.WriteString(SubtleItemStyle.Render(fmt.Sprintf("Filter: %s", m.filter)) + "\n\n")
	}

	if m.loading {
		content.WriteString(SubtleItemStyle.Render("Loading..."))
		return content.String()
	}

	ids := m.itemIDs()
	if len(m.visible) == 0 {
		switch {
		case len(ids) > 0:
			content.WriteString(SubtleItemStyle.Render("No items match filter"))
		case m.showingTables:
			content.WriteString(SubtleItemStyle.Render("No tables found"))
		default:
			content.WriteString(SubtleItemStyle.Render("No datasets found"))
		}
		return content.String()
	}

	end := min(m.viewOffset+maxVisibleItems, len(m.visible))
	for i := m.viewOffset; i < end; i++ {
		style := ItemStyle
		if i == m.cursor {
			style = SelectedItemStyle
		}
		prefix := "  📁 "
		if m.showingTables {
			prefix = "  🗂  "
		}
		content.WriteString(style.Render(prefix+ids[m.visible[i]]) + "\n")
	}

	if len(m.visible) > end {
		content.WriteString(SubtleItemStyle.Render(fmt.Sprintf("... and %d more", len(m.visible)-end)) + "\n")
	}

	content.WriteString("\n" + SubtleItemStyle.Render(fmt.Sprintf("%d/%d", len(m.visible), len(ids))))
	return content.String()
}
