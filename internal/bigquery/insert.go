package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	log "github.com/golang/glog"
)

// InsertRows streams rows into a table. It returns nil when every row was
// accepted, a *PartialFailureError when the service rejected only some rows,
// an *InsertError when it rejected all of them, and any other error when the
// request failed as a whole. Invalid rows do not block the valid ones.
func (c *Client) InsertRows(ctx context.Context, datasetID, tableID string, rows []Row) error {
	datasetID, err := ident("dataset", datasetID)
	if err != nil {
		return err
	}
	if tableID, err = ident("table", tableID); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	savers := make([]bigquery.ValueSaver, len(rows))
	for i, row := range rows {
		savers[i] = row
	}

	inserter := c.bqClient.Dataset(datasetID).Table(tableID).Inserter()
	inserter.SkipInvalidRows = true
	if err := inserter.Put(ctx, savers); err != nil {
		return classifyInsertError(err, len(rows))
	}

	log.Infof("Inserted %d rows", len(rows))
	return nil
}

func classifyInsertError(err error, total int) error {
	var multi bigquery.PutMultiError
	if !errors.As(err, &multi) || len(multi) == 0 {
		return fmt.Errorf("failed to insert rows: %w", err)
	}

	rejected := rejectedRows(multi)
	if len(rejected) < total {
		return &PartialFailureError{Total: total, Rows: rejected}
	}
	return &InsertError{Total: total, Rows: rejected}
}

// rejectedRows drops rows that were only held back because another row in
// the request was invalid. If every row is in that state, all are kept.
func rejectedRows(multi bigquery.PutMultiError) []RowError {
	var rows, stopped []RowError
	for _, rowErr := range multi {
		re := RowError{Index: rowErr.RowIndex, InsertID: rowErr.InsertID}
		onlyStopped := len(rowErr.Errors) > 0
		for _, cause := range rowErr.Errors {
			re.Causes = append(re.Causes, describe(cause))
			if !isStopped(cause) {
				onlyStopped = false
			}
		}
		if onlyStopped {
			stopped = append(stopped, re)
			continue
		}
		rows = append(rows, re)
	}
	if len(rows) == 0 {
		return stopped
	}
	return rows
}

func isStopped(err error) bool {
	var bqErr *bigquery.Error
	return errors.As(err, &bqErr) && bqErr.Reason == "stopped"
}
