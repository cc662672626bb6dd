package bigquery

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	log "github.com/golang/glog"

	"github.com/JesseCastro/bqutil/internal/gcs"
)

// runningJob is the part of *bigquery.Job that waitJob needs.
type runningJob interface {
	ID() string
	Wait(ctx context.Context) (*bigquery.JobStatus, error)
}

// waitJob blocks until the job reaches a terminal state and then checks that
// it completed without errors.
func waitJob(ctx context.Context, job runningJob, kind JobKind) (*Job, error) {
	log.V(2).Infof("waiting for %s job %s", kind, job.ID())
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for %s job %s: %w", kind, job.ID(), err)
	}

	result, err := checkStatus(job.ID(), kind, status)
	if err != nil {
		return result, err
	}
	log.Infof("Job %s completed.", job.ID())
	return result, nil
}

// Load submits a load job from either a local file or a Cloud Storage object.
func (c *Client) Load(ctx context.Context, datasetID, tableID string, src Source) (*Job, error) {
	switch {
	case src.Object != nil && src.LocalPath != "":
		return nil, fmt.Errorf("%w: both a local path and an object were given", ErrInvalidSource)
	case src.Object != nil:
		return c.LoadGCS(ctx, datasetID, tableID, *src.Object, src.Options)
	case src.LocalPath != "":
		return c.LoadLocal(ctx, datasetID, tableID, src.LocalPath, src.Options)
	default:
		return nil, fmt.Errorf("%w: no local path or object given", ErrInvalidSource)
	}
}

func (c *Client) LoadLocal(ctx context.Context, datasetID, tableID, path string, opts LoadOptions) (*Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	source := bigquery.NewReaderSource(f)
	source.SourceFormat = dataFormat(path, opts.Format)
	if source.SourceFormat == bigquery.CSV {
		source.SkipLeadingRows = opts.SkipLeadingRows
	}

	return c.runLoad(ctx, datasetID, tableID, source, opts)
}

func (c *Client) LoadGCS(ctx context.Context, datasetID, tableID string, ref gcs.ObjectRef, opts LoadOptions) (*Job, error) {
	gcsRef := bigquery.NewGCSReference(ref.URI())
	gcsRef.SourceFormat = dataFormat(ref.Object, opts.Format)
	if gcsRef.SourceFormat == bigquery.CSV {
		gcsRef.SkipLeadingRows = opts.SkipLeadingRows
	}

	return c.runLoad(ctx, datasetID, tableID, gcsRef, opts)
}

func (c *Client) runLoad(ctx context.Context, datasetID, tableID string, src bigquery.LoadSource, opts LoadOptions) (*Job, error) {
	datasetID, err := ident("dataset", datasetID)
	if err != nil {
		return nil, err
	}
	if tableID, err = ident("table", tableID); err != nil {
		return nil, err
	}

	loader := c.bqClient.Dataset(datasetID).Table(tableID).LoaderFrom(src)
	if opts.WriteDisposition != "" {
		loader.WriteDisposition = opts.WriteDisposition
	}

	job, err := loader.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start load into %s.%s: %w", datasetID, tableID, err)
	}
	log.V(1).Infof("Job %s started.", job.ID())

	return waitJob(ctx, job, LoadJob)
}

func (c *Client) Extract(ctx context.Context, datasetID, tableID string, dst gcs.ObjectRef, opts ExtractOptions) (*Job, error) {
	datasetID, err := ident("dataset", datasetID)
	if err != nil {
		return nil, err
	}
	if tableID, err = ident("table", tableID); err != nil {
		return nil, err
	}

	gcsRef := bigquery.NewGCSReference(dst.URI())
	gcsRef.DestinationFormat = dataFormat(dst.Object, opts.Format)
	if opts.Gzip {
		gcsRef.Compression = bigquery.Gzip
	}

	extractor := c.bqClient.Dataset(datasetID).Table(tableID).ExtractorTo(gcsRef)
	extractor.DisableHeader = opts.DisableHeader

	job, err := extractor.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start extract of %s.%s: %w", datasetID, tableID, err)
	}
	log.V(1).Infof("Job %s started.", job.ID())

	return waitJob(ctx, job, ExtractJob)
}

// CopyTable copies srcDataset.srcTable into dstDataset.dstTable. The default
// write disposition only writes to an empty or missing destination.
func (c *Client) CopyTable(ctx context.Context, srcDatasetID, srcTableID, dstDatasetID, dstTableID string, disposition bigquery.TableWriteDisposition) (*Job, error) {
	for _, id := range []struct{ kind, value string }{
		{"source dataset", srcDatasetID},
		{"source table", srcTableID},
		{"destination dataset", dstDatasetID},
		{"destination table", dstTableID},
	} {
		if strings.TrimSpace(id.value) == "" {
			return nil, fmt.Errorf("%s: %w", id.kind, ErrEmptyIdentifier)
		}
	}

	src := c.bqClient.Dataset(strings.TrimSpace(srcDatasetID)).Table(strings.TrimSpace(srcTableID))
	dst := c.bqClient.Dataset(strings.TrimSpace(dstDatasetID)).Table(strings.TrimSpace(dstTableID))

	copier := dst.CopierFrom(src)
	if disposition != "" {
		copier.WriteDisposition = disposition
	}

	job, err := copier.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start copy of %s.%s: %w", srcDatasetID, srcTableID, err)
	}
	log.V(1).Infof("Job %s started.", job.ID())

	return waitJob(ctx, job, CopyJob)
}
