// Package loader loads files into warehouse tables, creating the table first
// when it does not exist yet.
//
// Existence is checked by listing the dataset's tables before acting, so two
// writers targeting the same missing table can both decide to create it. The
// second create then fails with bigquery.ErrTableExists; callers that need
// exactly-once creation must serialize their calls.
package loader

import (
	"context"
	"fmt"
	"strings"

	log "github.com/golang/glog"

	"github.com/JesseCastro/bqutil/internal/bigquery"
)

// Warehouse is the subset of the warehouse client the dispatcher drives.
type Warehouse interface {
	TableIDs(ctx context.Context, datasetID string) ([]string, error)
	CreateTable(ctx context.Context, datasetID, tableID string, schema bigquery.Schema) (*bigquery.Table, error)
	Load(ctx context.Context, datasetID, tableID string, src bigquery.Source) (*bigquery.Job, error)
}

type Result struct {
	// Created is true when the table did not exist and was created before loading.
	Created bool
	Job     *bigquery.Job
}

type Dispatcher struct {
	wh Warehouse
}

func NewDispatcher(wh Warehouse) *Dispatcher {
	return &Dispatcher{wh: wh}
}

// EnsureLoaded loads src into datasetID.tableID, creating the table with
// schema first if no table with that identifier exists. Identifiers are
// compared after trimming surrounding whitespace. The schema is ignored when
// the table already exists.
func (d *Dispatcher) EnsureLoaded(ctx context.Context, datasetID, tableID string, schema bigquery.Schema, src bigquery.Source) (*Result, error) {
	datasetID = strings.TrimSpace(datasetID)
	tableID = strings.TrimSpace(tableID)
	if datasetID == "" {
		return nil, fmt.Errorf("dataset: %w", bigquery.ErrEmptyIdentifier)
	}
	if tableID == "" {
		return nil, fmt.Errorf("table: %w", bigquery.ErrEmptyIdentifier)
	}

	ids, err := d.wh.TableIDs(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for table %s.%s: %w", datasetID, tableID, err)
	}

	res := &Result{Created: !containsTable(ids, tableID)}
	if res.Created {
		if len(schema) == 0 {
			return nil, fmt.Errorf("table %s.%s does not exist: %w", datasetID, tableID, bigquery.ErrEmptySchema)
		}
		log.V(1).Infof("table %s.%s not found among %d tables, creating it", datasetID, tableID, len(ids))
		if _, err := d.wh.CreateTable(ctx, datasetID, tableID, schema); err != nil {
			return nil, err
		}
	} else {
		log.V(1).Infof("table %s.%s exists, loading into it", datasetID, tableID)
	}

	job, err := d.wh.Load(ctx, datasetID, tableID, src)
	res.Job = job
	if err != nil {
		return res, fmt.Errorf("failed to load %s into %s.%s: %w", src, datasetID, tableID, err)
	}

	log.Infof("Loaded %s into %s.%s (job %s, created=%t)", src, datasetID, tableID, job.ID, res.Created)
	return res, nil
}

func containsTable(ids []string, tableID string) bool {
	target := strings.TrimSpace(tableID)
	for _, id := range ids {
		if strings.TrimSpace(id) == target {
			return true
		}
	}
	return false
}
