package bigquery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/bigquery"
	log "github.com/golang/glog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type Client struct {
	bqClient  *bigquery.Client
	projectID string
}

func NewClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*Client, error) {
	bqClient, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}

	return &Client{
		bqClient:  bqClient,
		projectID: projectID,
	}, nil
}

// SetLocation sets the location used for jobs and dataset creation.
func (c *Client) SetLocation(location string) {
	c.bqClient.Location = location
}

func (c *Client) Close() error {
	return c.bqClient.Close()
}

func (c *Client) GetProjectID() string {
	return c.projectID
}

func ident(kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%s: %w", kind, ErrEmptyIdentifier)
	}
	return id, nil
}

func (c *Client) CreateDataset(ctx context.Context, datasetID string, opts DatasetOptions) (*Dataset, error) {
	datasetID, err := ident("dataset", datasetID)
	if err != nil {
		return nil, err
	}

	md := &bigquery.DatasetMetadata{
		Location:    opts.Location,
		Description: opts.Description,
	}
	if err := c.bqClient.Dataset(datasetID).Create(ctx, md); err != nil {
		return nil, fmt.Errorf("failed to create dataset %s: %w", datasetID, err)
	}
	log.Infof("Dataset %s created.", datasetID)

	return &Dataset{
		ID:          datasetID,
		ProjectID:   c.projectID,
		Location:    opts.Location,
		Description: opts.Description,
	}, nil
}

// DeleteDataset deletes an empty dataset, or the dataset and all of its tables
// when force is set.
func (c *Client) DeleteDataset(ctx context.Context, datasetID string, force bool) error {
	datasetID, err := ident("dataset", datasetID)
	if err != nil {
		return err
	}

	ds := c.bqClient.Dataset(datasetID)
	if force {
		err = ds.DeleteWithContents(ctx)
	} else {
		err = ds.Delete(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", datasetID, err)
	}
	log.Infof("Dataset %s deleted.", datasetID)
	return nil
}

func (c *Client) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	datasets := make([]*Dataset, 0)
	it := c.bqClient.Datasets(ctx)

	for {
		dataset, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate datasets: %w", err)
		}

		metadata, err := dataset.Metadata(ctx)
		if err != nil {
			log.Warningf("skipping dataset %s: failed to get metadata: %v", dataset.DatasetID, err)
			continue
		}

		datasets = append(datasets, &Dataset{
			ID:          dataset.DatasetID,
			ProjectID:   c.projectID,
			Location:    metadata.Location,
			Description: metadata.Description,
			CreatedAt:   metadata.CreationTime,
			Labels:      metadata.Labels,
		})
	}

	sort.Slice(datasets, func(i, j int) bool {
		return datasets[i].ID < datasets[j].ID
	})

	return datasets, nil
}

func (c *Client) CreateTable(ctx context.Context, datasetID, tableID string, schema Schema) (*Table, error) {
	datasetID, err := ident("dataset", datasetID)
	if err != nil {
		return nil, err
	}
	if tableID, err = ident("table", tableID); err != nil {
		return nil, err
	}
	if len(schema) == 0 {
		return nil, ErrEmptySchema
	}

	md := &bigquery.TableMetadata{Schema: schema.toBigQuery()}
	if err := c.bqClient.Dataset(datasetID).Table(tableID).Create(ctx, md); err != nil {
		if isConflict(err) {
			return nil, fmt.Errorf("failed to create table %s.%s: %w: %w", datasetID, tableID, ErrTableExists, err)
		}
		return nil, fmt.Errorf("failed to create table %s.%s: %w", datasetID, tableID, err)
	}
	log.Infof("Table %s created.", tableID)

	return &Table{ID: tableID, DatasetID: datasetID, ProjectID: c.projectID}, nil
}

func (c *Client) DeleteTable(ctx context.Context, datasetID, tableID string) error {
	datasetID, err := ident("dataset", datasetID)
	if err != nil {
		return err
	}
	if tableID, err = ident("table", tableID); err != nil {
		return err
	}

	if err := c.bqClient.Dataset(datasetID).Table(tableID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete table %s.%s: %w", datasetID, tableID, err)
	}
	log.Infof("Table %s deleted.", tableID)
	return nil
}

func (c *Client) ListTables(ctx context.Context, datasetID string) ([]*Table, error) {
	dataset := c.bqClient.Dataset(datasetID)
	tables := make([]*Table, 0)
	it := dataset.Tables(ctx)

	for {
		table, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate tables: %w", err)
		}

		metadata, err := table.Metadata(ctx)
		if err != nil {
			log.Warningf("skipping table %s: failed to get metadata: %v", table.TableID, err)
			continue
		}

		tables = append(tables, &Table{
			ID:          table.TableID,
			DatasetID:   datasetID,
			ProjectID:   c.projectID,
			Description: metadata.Description,
			CreatedAt:   metadata.CreationTime,
			NumRows:     metadata.NumRows,
			NumBytes:    metadata.NumBytes,
			Type:        string(metadata.Type),
			Labels:      metadata.Labels,
		})
	}

	sort.Slice(tables, func(i, j int) bool {
		return tables[i].ID < tables[j].ID
	})

	return tables, nil
}

// TableIDs lists the identifiers of every table in the dataset, as returned by
// the service and without fetching per-table metadata.
func (c *Client) TableIDs(ctx context.Context, datasetID string) ([]string, error) {
	it := c.bqClient.Dataset(datasetID).Tables(ctx)

	var ids []string
	for {
		table, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list tables in dataset %s: %w", datasetID, err)
		}
		ids = append(ids, table.TableID)
	}
	return ids, nil
}

func (c *Client) TableSchema(ctx context.Context, datasetID, tableID string) (Schema, error) {
	metadata, err := c.bqClient.Dataset(datasetID).Table(tableID).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get table metadata: %w", err)
	}
	return convertBigQuerySchema(metadata.Schema), nil
}

// BrowseRows reads rows straight from table storage. A limit of zero or less
// reads the whole table.
func (c *Client) BrowseRows(ctx context.Context, datasetID, tableID string, limit int) (*RowSet, error) {
	it := c.bqClient.Dataset(datasetID).Table(tableID).Read(ctx)
	rs, err := collectRows(it, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s.%s: %w", datasetID, tableID, err)
	}
	return rs, nil
}

func collectRows(it *bigquery.RowIterator, limit int) (*RowSet, error) {
	rs := &RowSet{Rows: make([]Row, 0)}
	for limit <= 0 || len(rs.Rows) < limit {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, Row(row))
	}

	for _, field := range it.Schema {
		rs.Columns = append(rs.Columns, field.Name)
	}
	return rs, nil
}
