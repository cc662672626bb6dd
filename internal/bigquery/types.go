package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/JesseCastro/bqutil/internal/gcs"
)

type Dataset struct {
	ID          string
	ProjectID   string
	Location    string
	Description string
	CreatedAt   time.Time
	Labels      map[string]string
}

type Table struct {
	ID          string
	DatasetID   string
	ProjectID   string
	Description string
	CreatedAt   time.Time
	NumRows     uint64
	NumBytes    int64
	Type        string
	Labels      map[string]string
}

// Field is a single (name, type) column of a table schema.
type Field struct {
	Name     string
	Type     bigquery.FieldType
	Repeated bool
	Required bool
	Fields   []*Field
}

type Schema []*Field

// Row is an opaque record keyed by column name.
type Row map[string]bigquery.Value

// Save implements bigquery.ValueSaver. An empty insert ID lets the client
// generate one per row.
func (r Row) Save() (map[string]bigquery.Value, string, error) {
	return r, "", nil
}

type RowSet struct {
	Columns []string
	Rows    []Row
	JobID   string
}

type JobKind string

const (
	LoadJob    JobKind = "load"
	ExtractJob JobKind = "extract"
	CopyJob    JobKind = "copy"
	QueryJob   JobKind = "query"
)

// Job is a snapshot of an asynchronous warehouse job.
type Job struct {
	ID     string
	Kind   JobKind
	State  string
	Errors []string
}

type Dialect int

const (
	StandardSQL Dialect = iota
	LegacySQL
)

func (d Dialect) String() string {
	if d == LegacySQL {
		return "legacy"
	}
	return "standard"
}

type DatasetOptions struct {
	Location    string
	Description string
}

type LoadOptions struct {
	// Format is a bigquery.DataFormat name such as CSV or NEWLINE_DELIMITED_JSON.
	// When empty it is inferred from the file extension.
	Format           string
	SkipLeadingRows  int64
	WriteDisposition bigquery.TableWriteDisposition
}

type ExtractOptions struct {
	Format        string
	Gzip          bool
	DisableHeader bool
}

// Source is where a load job reads from: a local file or a Cloud Storage object.
type Source struct {
	LocalPath string
	Object    *gcs.ObjectRef
	Options   LoadOptions
}

func (s Source) String() string {
	if s.Object != nil {
		return s.Object.URI()
	}
	return "local:" + s.LocalPath
}

type QueryOptions struct {
	Dialect Dialect
	Timeout time.Duration
}

type QueryJobRequest struct {
	SQL     string
	Dialect Dialect
	// Dst optionally names a destination table as dataset and table IDs.
	DstDataset string
	DstTable   string
}
