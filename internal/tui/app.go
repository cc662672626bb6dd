package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	log "github.com/golang/glog"

	"github.com/JesseCastro/bqutil/internal/bigquery"
	"github.com/JesseCastro/bqutil/internal/cache"
	"github.com/JesseCastro/bqutil/pkg/clipboard"
)

// RowLimit caps how many rows are fetched when a table is opened.
const RowLimit = 100

// Browser is the read-only part of the warehouse client the UI needs.
type Browser interface {
	GetProjectID() string
	ListDatasets(ctx context.Context) ([]*bigquery.Dataset, error)
	ListTables(ctx context.Context, datasetID string) ([]*bigquery.Table, error)
	TableSchema(ctx context.Context, datasetID, tableID string) (bigquery.Schema, error)
	BrowseRows(ctx context.Context, datasetID, tableID string, limit int) (*bigquery.RowSet, error)
}

type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Enter     key.Binding
	Search    key.Binding
	Copy      key.Binding
	Refresh   key.Binding
	Top       key.Binding
	Bottom    key.Binding
	VimTop    key.Binding
	VimBottom key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Escape    key.Binding
	Back      key.Binding
	Quit      key.Binding
	Help      key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "previous column"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next column"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y", "ctrl+y"),
			key.WithHelp("y", "copy"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Top: key.NewBinding(
			key.WithKeys("home"),
			key.WithHelp("home", "go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end"),
			key.WithHelp("end", "go to bottom"),
		),
		VimTop: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "go to top"),
		),
		VimBottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "go to bottom"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "page down"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back/clear"),
		),
		Back: key.NewBinding(
			key.WithKeys("backspace"),
			key.WithHelp("backspace", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Search, k.Copy, k.Refresh, k.Escape, k.Quit, k.Help}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Enter, k.Search, k.Escape, k.Back},
		{k.Copy, k.Refresh, k.Top, k.Bottom},
		{k.VimTop, k.VimBottom, k.PageUp, k.PageDown},
		{k.Quit, k.Help},
	}
}

type FocusState int

const (
	FocusList FocusState = iota
	FocusRows
	FocusSearch
)

type Model struct {
	ctx           context.Context
	browser       Browser
	cache         *cache.Cache
	list          DatasetListModel
	rows          RowsModel
	search        SearchModel
	focus         FocusState
	keyMap        KeyMap
	help          help.Model
	showHelp      bool
	width         int
	height        int
	ready         bool
	err           error
	statusMessage string
	copy          func(string) error
}

// NewModel builds the browser UI. c may be nil to always hit the warehouse.
func NewModel(ctx context.Context, browser Browser, c *cache.Cache) Model {
	return Model{
		ctx:     ctx,
		browser: browser,
		cache:   c,
		list:    NewDatasetListModel(),
		rows:    NewRowsModel(),
		search:  NewSearchModel(""),
		focus:   FocusList,
		keyMap:  DefaultKeyMap(),
		help:    help.New(),
		copy:    clipboard.Copy,
	}
}

func (m Model) Init() tea.Cmd {
	return m.loadDatasets(false)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.rows.width = msg.Width - 6
		m.rows.height = msg.Height - 8
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		if m.focus == FocusSearch {
			return m.handleSearchInput(msg)
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keyMap.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.Help):
			m.showHelp = true
			return m, nil

		case key.Matches(msg, m.keyMap.Escape, m.keyMap.Back):
			return m.back()

		case key.Matches(msg, m.keyMap.Search):
			if m.focus != FocusList {
				return m, nil
			}
			m.focus = FocusSearch
			m.search = NewSearchModel(m.list.filter)
			cmd := m.search.Focus()
			return m, cmd

		case key.Matches(msg, m.keyMap.Refresh):
			return m.refresh()

		case key.Matches(msg, m.keyMap.Copy):
			return m.handleCopy()
		}

		return m.updateFocusedComponent(msg)

	case DatasetsLoadedMsg:
		m.err = nil
		m.list.setDatasets(msg.Datasets)
		m.statusMessage = fmt.Sprintf("Loaded %d datasets", len(msg.Datasets))
		return m, nil

	case TablesLoadedMsg:
		if m.list.selectedDataset == nil || m.list.selectedDataset.ID != msg.DatasetID {
			return m, nil
		}
		m.err = nil
		m.list.setTables(msg.Tables)
		m.statusMessage = fmt.Sprintf("Loaded %d tables in %s", len(msg.Tables), msg.DatasetID)
		return m, nil

	case RowsLoadedMsg:
		m.err = nil
		m.rows.setRows(msg.DatasetID, msg.TableID, msg.Schema, msg.Rows)
		m.focus = FocusRows
		m.statusMessage = fmt.Sprintf("Loaded %d rows from %s.%s", len(msg.Rows.Rows), msg.DatasetID, msg.TableID)
		return m, nil

	case ErrorMsg:
		m.err = msg.Error
		m.list.loading = false
		return m, nil

	case CopySuccessMsg:
		m.statusMessage = fmt.Sprintf("Copied: %s", msg.Text)
		return m, nil
	}

	return m, nil
}

func (m Model) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.focus = FocusList
		m.list.setFilter(m.search.Value())
		return m, nil
	case tea.KeyEsc:
		m.focus = FocusList
		m.list.setFilter("")
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.list.setFilter(m.search.Value())
	return m, cmd
}

func (m Model) back() (tea.Model, tea.Cmd) {
	switch {
	case m.focus == FocusRows:
		m.focus = FocusList
	case m.list.filter != "":
		m.list.setFilter("")
	case m.list.showingTables:
		m.list.closeDataset()
	}
	return m, nil
}

func (m Model) refresh() (tea.Model, tea.Cmd) {
	projectID := m.browser.GetProjectID()
	switch {
	case m.focus == FocusRows:
		if m.cache != nil {
			if err := m.cache.ClearSchema(projectID, m.rows.datasetID, m.rows.tableID); err != nil {
				log.Warningf("failed to clear cached schema of %s.%s: %v", m.rows.datasetID, m.rows.tableID, err)
			}
		}
		return m, m.loadRows(m.rows.datasetID, m.rows.tableID)
	case m.list.showingTables:
		if m.cache != nil {
			if err := m.cache.ClearAllTablesInDataset(projectID, m.list.selectedDataset.ID); err != nil {
				log.Warningf("failed to clear cached tables of %s: %v", m.list.selectedDataset.ID, err)
			}
		}
		m.list.loading = true
		return m, m.loadTables(m.list.selectedDataset.ID)
	default:
		m.list.loading = true
		return m, m.loadDatasets(true)
	}
}

func (m Model) updateFocusedComponent(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.focus {
	case FocusList:
		m.list, cmd = m.list.Update(msg)
		if m.list.datasetOpened {
			m.list.datasetOpened = false
			return m, tea.Batch(cmd, m.loadTables(m.list.selectedDataset.ID))
		}
		if m.list.tableSelected {
			m.list.tableSelected = false
			t := m.list.selectedTable
			m.statusMessage = fmt.Sprintf("Loading %s.%s...", t.DatasetID, t.ID)
			return m, tea.Batch(cmd, m.loadRows(t.DatasetID, t.ID))
		}
		return m, cmd

	case FocusRows:
		m.rows, cmd = m.rows.Update(msg)
		return m, cmd
	}

	return m, cmd
}

func (m Model) handleCopy() (tea.Model, tea.Cmd) {
	var text string
	switch {
	case m.focus == FocusRows:
		v, ok := m.rows.currentCell()
		if !ok {
			return m, nil
		}
		text = v
	case m.list.showingTables:
		t := m.list.current()
		if t == nil {
			return m, nil
		}
		text = clipboard.TableRef(m.browser.GetProjectID(), m.list.selectedDataset.ID, t.ID)
	default:
		d := m.list.currentDataset()
		if d == nil {
			return m, nil
		}
		text = clipboard.DatasetRef(m.browser.GetProjectID(), d.ID)
	}

	copyFn := m.copy
	return m, func() tea.Msg {
		if err := copyFn(text); err != nil {
			return ErrorMsg{Error: fmt.Errorf("failed to copy to clipboard: %w", err)}
		}
		return CopySuccessMsg{Text: text}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return m.help.FullHelpView(m.keyMap.FullHelp()) + "\n\n" + HelpStyle.Render("Press any key to close help")
	}

	paneStyle := ActivePaneStyle.Width(m.width - 4).Height(m.height - 6)

	var body string
	if m.focus == FocusRows {
		body = m.rows.View()
	} else {
		body = m.list.View()
	}
	main := paneStyle.Render(body)

	searchBar := ""
	if m.focus == FocusSearch {
		searchBar = SearchBoxStyle.Render(m.search.View())
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderTitle(),
		main,
		searchBar,
		m.renderStatusBar(),
	)
}

func (m Model) renderTitle() string {
	title := HeaderStyle.Render("bqutil") + SubtleItemStyle.Render(" · "+m.browser.GetProjectID())
	return TitleBarStyle.Width(m.width).Render(title)
}

func (m Model) renderStatusBar() string {
	left := m.statusMessage
	if m.err != nil {
		left = ErrorStyle.Render(fmt.Sprintf("Error: %s", m.err.Error()))
	}

	helpStyled := HelpStyle.Render(m.help.ShortHelpView(m.keyMap.ShortHelp()))

	if lipgloss.Width(left)+lipgloss.Width(helpStyled)+3 <= m.width {
		padding := m.width - lipgloss.Width(left) - lipgloss.Width(helpStyled)
		if padding < 0 {
			padding = 0
		}
		return StatusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", padding) + helpStyled)
	}

	statusLine := StatusBarStyle.Width(m.width).Render(left)
	helpLine := StatusBarStyle.Width(m.width).Render(helpStyled)
	return statusLine + "\n" + helpLine
}
