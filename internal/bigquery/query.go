package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	log "github.com/golang/glog"
)

const DefaultQueryTimeout = 10 * time.Second

func (c *Client) newQuery(sql string, dialect Dialect) (*bigquery.Query, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, fmt.Errorf("query: %w", ErrEmptyIdentifier)
	}
	q := c.bqClient.Query(sql)
	if dialect == LegacySQL {
		q.UseLegacySQL = true
	} else {
		q.UseStandardSQL = true
	}
	return q, nil
}

// Query runs sql and waits for its rows within opts.Timeout (DefaultQueryTimeout
// when unset). Running out of time yields ErrQueryTimeout.
func (c *Client) Query(ctx context.Context, sql string, opts QueryOptions) (*RowSet, error) {
	q, err := c.newQuery(sql, opts.Dialect)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rs, err := c.readQuery(qctx, q)
	if err != nil {
		if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || qctx.Err() == context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (budget %s)", ErrQueryTimeout, timeout)
		}
		return nil, err
	}
	return rs, nil
}

func (c *Client) readQuery(ctx context.Context, q *bigquery.Query) (*RowSet, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	rs, err := collectRows(it, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate query results: %w", err)
	}
	return rs, nil
}

// RunQueryJob submits the query as a job, waits for it, checks the job's
// status for errors and then fetches the result rows. There is no client-side
// timeout beyond ctx.
func (c *Client) RunQueryJob(ctx context.Context, req QueryJobRequest) (*RowSet, error) {
	q, err := c.newQuery(req.SQL, req.Dialect)
	if err != nil {
		return nil, err
	}
	if req.DstDataset != "" || req.DstTable != "" {
		dstDataset, err := ident("destination dataset", req.DstDataset)
		if err != nil {
			return nil, err
		}
		dstTable, err := ident("destination table", req.DstTable)
		if err != nil {
			return nil, err
		}
		q.Dst = c.bqClient.Dataset(dstDataset).Table(dstTable)
		if req.Dialect == LegacySQL {
			q.AllowLargeResults = true
		}
	}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	log.Infof("Job %s started.", job.ID())

	if _, err := job.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for job completion: %w", err)
	}

	status, err := job.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get status of job %s: %w", job.ID(), err)
	}
	if _, err := checkStatus(job.ID(), QueryJob, status); err != nil {
		return nil, err
	}
	log.Infof("Job %s completed.", job.ID())

	it, err := job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read query results: %w", err)
	}
	rs, err := collectRows(it, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate query results: %w", err)
	}
	rs.JobID = job.ID()
	return rs, nil
}

// CreateTableFromQuery writes the results of sql into datasetID.tableID.
func (c *Client) CreateTableFromQuery(ctx context.Context, sql, datasetID, tableID string, dialect Dialect) (*RowSet, error) {
	return c.RunQueryJob(ctx, QueryJobRequest{
		SQL:        sql,
		Dialect:    dialect,
		DstDataset: datasetID,
		DstTable:   tableID,
	})
}

// ParseDialect accepts "standard" or "legacy"; empty means standard.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "std":
		return StandardSQL, nil
	case "legacy":
		return LegacySQL, nil
	default:
		return StandardSQL, fmt.Errorf("unknown SQL dialect %q", s)
	}
}
