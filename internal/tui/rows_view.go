package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/JesseCastro/bqutil/internal/bigquery"
)

const (
	minColWidth = 8
	maxColWidth = 30
)

// RowsModel renders a fetched page of rows as a grid with a cell cursor.
type RowsModel struct {
	datasetID string
	tableID   string
	types     map[string]string
	set       *bigquery.RowSet
	rowCursor int
	colCursor int
	rowOffset int
	colOffset int
	width     int
	height    int
}

func NewRowsModel() RowsModel {
	return RowsModel{width: 80, height: 20}
}

func (m *RowsModel) setRows(datasetID, tableID string, schema bigquery.Schema, set *bigquery.RowSet) {
	m.datasetID = datasetID
	m.tableID = tableID
	m.set = set
	m.types = make(map[string]string, len(schema))
	for _, f := range schema {
		m.types[f.Name] = string(f.Type)
	}
	m.rowCursor, m.colCursor = 0, 0
	m.rowOffset, m.colOffset = 0, 0
}

func (m RowsModel) numRows() int {
	if m.set == nil {
		return 0
	}
	return len(m.set.Rows)
}

func (m RowsModel) numCols() int {
	if m.set == nil {
		return 0
	}
	return len(m.set.Columns)
}

func (m RowsModel) Update(msg tea.Msg) (RowsModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.numRows() == 0 {
		return m, nil
	}

	keys := DefaultKeyMap()
	rows, cols := m.numRows(), m.numCols()
	switch {
	case key.Matches(keyMsg, keys.Up):
		m.rowCursor = max(m.rowCursor-1, 0)
	case key.Matches(keyMsg, keys.Down):
		m.rowCursor = min(m.rowCursor+1, rows-1)
	case key.Matches(keyMsg, keys.Left):
		m.colCursor = max(m.colCursor-1, 0)
	case key.Matches(keyMsg, keys.Right):
		m.colCursor = min(m.colCursor+1, cols-1)
	case key.Matches(keyMsg, keys.VimTop, keys.Top):
		m.rowCursor = 0
	case key.Matches(keyMsg, keys.VimBottom, keys.Bottom):
		m.rowCursor = rows - 1
	case key.Matches(keyMsg, keys.PageUp):
		m.rowCursor = max(m.rowCursor-m.visibleRows(), 0)
	case key.Matches(keyMsg, keys.PageDown):
		m.rowCursor = min(m.rowCursor+m.visibleRows(), rows-1)
	}

	m.ensureCursorVisible()
	return m, nil
}

func (m RowsModel) visibleRows() int {
	// title, table line, header, separator, footer
	return max(m.height-6, 1)
}

func (m *RowsModel) ensureCursorVisible() {
	visible := m.visibleRows()
	if m.rowCursor < m.rowOffset {
		m.rowOffset = m.rowCursor
	}
	if m.rowCursor >= m.rowOffset+visible {
		m.rowOffset = m.rowCursor - visible + 1
	}

	if m.colCursor < m.colOffset {
		m.colOffset = m.colCursor
	}
	widths := m.columnWidths()
	for m.colOffset < m.colCursor && !m.fits(widths, m.colOffset, m.colCursor) {
		m.colOffset++
	}
}

// fits reports whether columns from..to all fit on one line.
func (m RowsModel) fits(widths []int, from, to int) bool {
	total := 0
	for i := from; i <= to; i++ {
		total += widths[i] + 1
	}
	return total <= m.width
}

func (m RowsModel) columnWidths() []int {
	widths := make([]int, m.numCols())
	for i, col := range m.set.Columns {
		w := len(col)
		for _, row := range m.set.Rows {
			w = max(w, len(formatValue(row[col])))
		}
		widths[i] = min(max(w, minColWidth), maxColWidth)
	}
	return widths
}

// currentCell returns the formatted value under the cursor.
func (m RowsModel) currentCell() (string, bool) {
	if m.rowCursor >= m.numRows() || m.colCursor >= m.numCols() {
		return "", false
	}
	col := m.set.Columns[m.colCursor]
	return formatValue(m.set.Rows[m.rowCursor][col]), true
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return v.Format(time.RFC3339)
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func (m RowsModel) View() string {
	var content strings.Builder
	content.WriteString(HeaderStyle.Render("👀 Rows") + "\n")
	content.WriteString(SubtleItemStyle.Render(fmt.Sprintf("Table: %s.%s", m.datasetID, m.tableID)) + "\n")

	if m.numCols() == 0 {
		content.WriteString("\n" + SubtleItemStyle.Render("No data available"))
		return content.String()
	}

	widths := m.columnWidths()
	end := m.colOffset
	for end < m.numCols() && m.fits(widths, m.colOffset, end) {
		end++
	}
	end = max(end, m.colOffset+1)

	var header, types strings.Builder
	for i := m.colOffset; i < end; i++ {
		col := m.set.Columns[i]
		style := HeaderStyle
		if i == m.colCursor {
			style = SelectedHeaderStyle
		}
		header.WriteString(style.Render(fmt.Sprintf("%-*s", widths[i], truncate(col, widths[i]))) + " ")
		types.WriteString(DataTypeStyle.Render(fmt.Sprintf("%-*s", widths[i], truncate(m.types[col], widths[i]))) + " ")
	}
	content.WriteString(header.String() + "\n")
	content.WriteString(types.String() + "\n")
	content.WriteString(strings.Repeat("─", min(m.width, 200)) + "\n")

	rowEnd := min(m.rowOffset+m.visibleRows(), m.numRows())
	for r := m.rowOffset; r < rowEnd; r++ {
		var line strings.Builder
		for i := m.colOffset; i < end; i++ {
			cell := fmt.Sprintf("%-*s", widths[i], truncate(formatValue(m.set.Rows[r][m.set.Columns[i]]), widths[i]))
			switch {
			case r == m.rowCursor && i == m.colCursor:
				cell = SelectedItemStyle.Render(cell)
			case r == m.rowCursor:
				cell = SelectedRowStyle.Render(cell)
			}
			line.WriteString(cell + " ")
		}
		content.WriteString(line.String() + "\n")
	}

	info := fmt.Sprintf("Row %d/%d · Column %d/%d", m.rowCursor+1, m.numRows(), m.colCursor+1, m.numCols())
	if m.numRows() == 0 {
		info = "Table is empty"
	}
	if m.set.JobID != "" {
		info += " · job " + m.set.JobID
	}
	content.WriteString("\n" + SubtleItemStyle.Render(info))
	return content.String()
}
