package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/golang/glog"

	"github.com/JesseCastro/bqutil/internal/bigquery"
)

type DatasetsLoadedMsg struct {
	Datasets []*bigquery.Dataset
}

type TablesLoadedMsg struct {
	DatasetID string
	Tables    []*bigquery.Table
}

type RowsLoadedMsg struct {
	DatasetID string
	TableID   string
	Schema    bigquery.Schema
	Rows      *bigquery.RowSet
}

type ErrorMsg struct {
	Error error
}

type CopySuccessMsg struct {
	Text string
}

// loadDatasets lists datasets, serving them from the cache unless force is set.
func (m Model) loadDatasets(force bool) tea.Cmd {
	browser, c, ctx := m.browser, m.cache, m.ctx
	return func() tea.Msg {
		projectID := browser.GetProjectID()

		if c != nil && !force {
			if cached, found := c.GetDatasets(projectID); found {
				return DatasetsLoadedMsg{Datasets: cached}
			}
		}

		datasets, err := browser.ListDatasets(ctx)
		if err != nil {
			return ErrorMsg{Error: fmt.Errorf("failed to load datasets: %w", err)}
		}

		if c != nil {
			if err := c.SetDatasets(projectID, datasets); err != nil {
				log.Warningf("failed to cache datasets: %v", err)
			}
		}

		return DatasetsLoadedMsg{Datasets: datasets}
	}
}

func (m Model) loadTables(datasetID string) tea.Cmd {
	browser, c, ctx := m.browser, m.cache, m.ctx
	return func() tea.Msg {
		projectID := browser.GetProjectID()

		if c != nil {
			if cached, found := c.GetTables(projectID, datasetID); found {
				return TablesLoadedMsg{DatasetID: datasetID, Tables: cached}
			}
		}

		tables, err := browser.ListTables(ctx, datasetID)
		if err != nil {
			return ErrorMsg{Error: fmt.Errorf("failed to load tables for dataset %s: %w", datasetID, err)}
		}

		if c != nil {
			if err := c.SetTables(projectID, datasetID, tables); err != nil {
				log.Warningf("failed to cache tables of %s: %v", datasetID, err)
			}
		}

		return TablesLoadedMsg{DatasetID: datasetID, Tables: tables}
	}
}

// loadRows fetches the table's schema (cached) and its first RowLimit rows
// (never cached).
func (m Model) loadRows(datasetID, tableID string) tea.Cmd {
	browser, c, ctx := m.browser, m.cache, m.ctx
	return func() tea.Msg {
		projectID := browser.GetProjectID()

		var schema bigquery.Schema
		found := false
		if c != nil {
			schema, found = c.GetSchema(projectID, datasetID, tableID)
		}
		if !found {
			var err error
			schema, err = browser.TableSchema(ctx, datasetID, tableID)
			if err != nil {
				return ErrorMsg{Error: fmt.Errorf("failed to load schema for table %s: %w", tableID, err)}
			}
			if c != nil {
				if err := c.SetSchema(projectID, datasetID, tableID, schema); err != nil {
					log.Warningf("failed to cache schema of %s.%s: %v", datasetID, tableID, err)
				}
			}
		}

		rows, err := browser.BrowseRows(ctx, datasetID, tableID, RowLimit)
		if err != nil {
			return ErrorMsg{Error: fmt.Errorf("failed to load rows for table %s: %w", tableID, err)}
		}

		return RowsLoadedMsg{DatasetID: datasetID, TableID: tableID, Schema: schema, Rows: rows}
	}
}
