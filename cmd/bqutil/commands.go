package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	bq "cloud.google.com/go/bigquery"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/golang/glog"

	"github.com/JesseCastro/bqutil/internal/bigquery"
	"github.com/JesseCastro/bqutil/internal/gcs"
	"github.com/JesseCastro/bqutil/internal/loader"
	"github.com/JesseCastro/bqutil/internal/tui"
	"github.com/JesseCastro/bqutil/pkg/clipboard"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"datasets": {
		usage: "datasets list [-fresh] | datasets create <id> [-location L] [-description D] | datasets delete <id> [-force]",
		run:   runDatasets,
	},
	"tables": {
		usage: "tables list <dataset> [-fresh] | tables create <dataset> <table> -schema S [-copy] | tables delete <dataset> <table>",
		run:   runTables,
	},
	"rows": {
		usage: "rows <dataset> <table> [-limit N]",
		run:   runRows,
	},
	"copy": {
		usage: "copy <srcDataset> <srcTable> <dstDataset> <dstTable> [-truncate]",
		run:   runCopy,
	},
	"load": {
		usage: "load <dataset> <table> <local:path|gs://bucket/object> [-format F] [-skip-leading-rows N] [-truncate] [-check] [-bucket B]",
		run:   runLoad,
	},
	"load-file": {
		usage: "load-file <dataset> <table> <local:path|gs://bucket/object> [-schema S] [-format F] [-skip-leading-rows N] [-bucket B]",
		run:   runLoadFile,
	},
	"extract": {
		usage: "extract <dataset> <table> <gs://bucket/object> [-format F] [-gzip] [-no-header] [-bucket B]",
		run:   runExtract,
	},
	"insert": {
		usage: "insert <dataset> <table> <rows.json|->",
		run:   runInsert,
	},
	"query": {
		usage: "query [-legacy] [-async] [-timeout D] [--] <sql>",
		run:   runQuery,
	},
	"create-table-from-query": {
		usage: "create-table-from-query [-legacy] <dataset> <table> <sql>",
		run:   runCreateTableFromQuery,
	},
	"browse": {
		usage: "browse",
		run:   runBrowse,
	},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parseArgs parses fs allowing flags before, between and after the
// positional arguments, and checks the positional count. Everything after a
// "--" terminator is positional.
func parseArgs(fs *flag.FlagSet, args []string, want int) ([]string, error) {
	return parse(fs, args, want, true)
}

// parseText parses flags up to the first positional argument and takes the
// rest verbatim, so SQL tokens such as -1 or --comment are not read as flags.
func parseText(fs *flag.FlagSet, args []string, atLeast int) ([]string, error) {
	pos, err := parse(fs, args, -1, false)
	if err != nil {
		return nil, err
	}
	if len(pos) < atLeast {
		return nil, fmt.Errorf("%s: expected at least %d arguments, got %d", fs.Name(), atLeast, len(pos))
	}
	return pos, nil
}

func parse(fs *flag.FlagSet, args []string, want int, interspersed bool) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		if terminated(args, rest) || !interspersed {
			positional = append(positional, rest...)
			break
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
	if want >= 0 && len(positional) != want {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", fs.Name(), want, len(positional))
	}
	return positional, nil
}

// terminated reports whether flag parsing of args stopped at "--".
func terminated(args, rest []string) bool {
	i := len(args) - len(rest) - 1
	return i >= 0 && args[i] == "--"
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// objectArg resolves an object argument: a gs:// URI, or an object name in
// bucket when bucket is set.
func (a *app) objectArg(ctx context.Context, bucket, arg string) (gcs.ObjectRef, error) {
	if bucket == "" {
		return gcs.ParseURI(arg)
	}
	gc, err := a.storage(ctx)
	if err != nil {
		return gcs.ObjectRef{}, err
	}
	return gc.Resolve(bucket, arg)
}

// sourceArg is objectArg for load sources, which may also be local files.
func (a *app) sourceArg(ctx context.Context, bucket, arg string) (bigquery.Source, error) {
	if bucket == "" {
		return bigquery.ParseSource(arg)
	}
	ref, err := a.objectArg(ctx, bucket, arg)
	if err != nil {
		return bigquery.Source{}, fmt.Errorf("%w: %v", bigquery.ErrInvalidSource, err)
	}
	return bigquery.Source{Object: &ref}, nil
}

func writeDisposition(truncate bool) bq.TableWriteDisposition {
	if truncate {
		return bq.WriteTruncate
	}
	return bq.WriteAppend
}

// invalidate drops cached listings of datasetID after a mutating command.
func (a *app) invalidate(datasetID string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.InvalidateDataset(a.bq.GetProjectID(), datasetID); err != nil {
		log.Warningf("failed to invalidate cache for %s: %v", datasetID, err)
	}
}

func runDatasets(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("missing subcommand: list, create or delete")
	}
	sub, args := args[0], args[1:]
	fs := newFlagSet("datasets " + sub)

	switch sub {
	case "list":
		fresh := fs.Bool("fresh", false, "bypass the listing cache")
		if _, err := parseArgs(fs, args, 0); err != nil {
			return err
		}
		datasets, err := a.listDatasets(ctx, *fresh)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Datasets:")
		for _, d := range datasets {
			fmt.Fprintf(a.out, "  %s\n", d.ID)
		}
		return nil

	case "create":
		location := fs.String("location", a.cfg.Location, "dataset location")
		description := fs.String("description", "", "dataset description")
		pos, err := parseArgs(fs, args, 1)
		if err != nil {
			return err
		}
		if _, err := a.bq.CreateDataset(ctx, pos[0], bigquery.DatasetOptions{Location: *location, Description: *description}); err != nil {
			return err
		}
		a.invalidate(pos[0])
		return nil

	case "delete":
		force := fs.Bool("force", false, "delete the dataset's tables too")
		pos, err := parseArgs(fs, args, 1)
		if err != nil {
			return err
		}
		if err := a.bq.DeleteDataset(ctx, pos[0], *force); err != nil {
			return err
		}
		a.invalidate(pos[0])
		return nil
	}
	return fmt.Errorf("unknown datasets subcommand %q", sub)
}

func (a *app) listDatasets(ctx context.Context, fresh bool) ([]*bigquery.Dataset, error) {
	projectID := a.bq.GetProjectID()
	if a.cache != nil && !fresh {
		if cached, ok := a.cache.GetDatasets(projectID); ok {
			log.V(1).Infof("serving %d datasets from cache", len(cached))
			return cached, nil
		}
	}
	datasets, err := a.bq.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		if err := a.cache.SetDatasets(projectID, datasets); err != nil {
			log.Warningf("failed to cache datasets: %v", err)
		}
	}
	return datasets, nil
}

func runTables(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("missing subcommand: list, create or delete")
	}
	sub, args := args[0], args[1:]
	fs := newFlagSet("tables " + sub)

	switch sub {
	case "list":
		fresh := fs.Bool("fresh", false, "bypass the listing cache")
		pos, err := parseArgs(fs, args, 1)
		if err != nil {
			return err
		}
		tables, err := a.listTables(ctx, pos[0], *fresh)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Tables:")
		for _, t := range tables {
			fmt.Fprintf(a.out, "  %s\n", t.ID)
		}
		return nil

	case "create":
		schemaDef := fs.String("schema", "", "comma separated name:TYPE list")
		copyRef := fs.Bool("copy", false, "copy the new table's reference to the clipboard")
		pos, err := parseArgs(fs, args, 2)
		if err != nil {
			return err
		}
		schema, err := bigquery.ParseSchema(*schemaDef)
		if err != nil {
			return err
		}
		t, err := a.bq.CreateTable(ctx, pos[0], pos[1], schema)
		if err != nil {
			return err
		}
		a.invalidate(pos[0])
		if *copyRef {
			ref, err := clipboard.CopyTableRef(a.bq.GetProjectID(), t.DatasetID, t.ID)
			if err != nil {
				log.Warningf("%v", err)
			} else {
				log.Infof("Copied %s to the clipboard.", ref)
			}
		}
		return nil

	case "delete":
		pos, err := parseArgs(fs, args, 2)
		if err != nil {
			return err
		}
		if err := a.bq.DeleteTable(ctx, pos[0], pos[1]); err != nil {
			return err
		}
		a.invalidate(pos[0])
		return nil
	}
	return fmt.Errorf("unknown tables subcommand %q", sub)
}

func (a *app) listTables(ctx context.Context, datasetID string, fresh bool) ([]*bigquery.Table, error) {
	projectID := a.bq.GetProjectID()
	if a.cache != nil && !fresh {
		if cached, ok := a.cache.GetTables(projectID, datasetID); ok {
			log.V(1).Infof("serving %d tables of %s from cache", len(cached), datasetID)
			return cached, nil
		}
	}
	tables, err := a.bq.ListTables(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		if err := a.cache.SetTables(projectID, datasetID, tables); err != nil {
			log.Warningf("failed to cache tables of %s: %v", datasetID, err)
		}
	}
	return tables, nil
}

func runRows(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("rows")
	limit := fs.Int("limit", tui.RowLimit, "maximum number of rows, 0 for all")
	pos, err := parseArgs(fs, args, 2)
	if err != nil {
		return err
	}
	set, err := a.bq.BrowseRows(ctx, pos[0], pos[1], *limit)
	if err != nil {
		return err
	}
	return printRows(a.out, set)
}

func printRows(w io.Writer, set *bigquery.RowSet) error {
	fmt.Fprintln(w, "Rows:")
	enc := json.NewEncoder(w)
	for _, row := range set.Rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to print row: %w", err)
		}
	}
	return nil
}

func runCopy(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("copy")
	truncate := fs.Bool("truncate", false, "overwrite the destination table")
	pos, err := parseArgs(fs, args, 4)
	if err != nil {
		return err
	}
	if _, err := a.bq.CopyTable(ctx, pos[0], pos[1], pos[2], pos[3], writeDisposition(*truncate)); err != nil {
		return err
	}
	a.invalidate(pos[2])
	return nil
}

// loadFlags registers the options shared by load and load-file.
func loadFlags(fs *flag.FlagSet, a *app) (format *string, skip *int64, bucket *string) {
	format = fs.String("format", a.cfg.Load.Format, "source format (CSV, NEWLINE_DELIMITED_JSON, AVRO, PARQUET, ORC); inferred from the extension when empty")
	skip = fs.Int64("skip-leading-rows", a.cfg.Load.SkipLeadingRows, "CSV header rows to skip")
	bucket = fs.String("bucket", "", "read the source as an object name in this bucket")
	return format, skip, bucket
}

func runLoad(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("load")
	format, skip, bucket := loadFlags(fs, a)
	truncate := fs.Bool("truncate", false, "replace the table's contents")
	check := fs.Bool("check", false, "verify a gs:// source exists before submitting the job")
	pos, err := parseArgs(fs, args, 3)
	if err != nil {
		return err
	}

	src, err := a.sourceArg(ctx, *bucket, pos[2])
	if err != nil {
		return err
	}
	src.Options = bigquery.LoadOptions{Format: *format, SkipLeadingRows: *skip, WriteDisposition: writeDisposition(*truncate)}

	if *check && src.Object != nil {
		gc, err := a.storage(ctx)
		if err != nil {
			return err
		}
		ok, err := gc.Exists(ctx, *src.Object)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("source %s does not exist", src.Object)
		}
	}

	if _, err := a.bq.Load(ctx, pos[0], pos[1], src); err != nil {
		return err
	}
	a.invalidate(pos[0])
	return nil
}

func runLoadFile(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("load-file")
	format, skip, bucket := loadFlags(fs, a)
	schemaDef := fs.String("schema", "", "schema used if the table has to be created, as name:TYPE,...")
	pos, err := parseArgs(fs, args, 3)
	if err != nil {
		return err
	}

	var schema bigquery.Schema
	if strings.TrimSpace(*schemaDef) != "" {
		if schema, err = bigquery.ParseSchema(*schemaDef); err != nil {
			return err
		}
	}
	src, err := a.sourceArg(ctx, *bucket, pos[2])
	if err != nil {
		return err
	}
	src.Options = bigquery.LoadOptions{Format: *format, SkipLeadingRows: *skip}

	res, err := loader.NewDispatcher(a.bq).EnsureLoaded(ctx, pos[0], pos[1], schema, src)
	if res != nil && res.Created {
		a.invalidate(pos[0])
	}
	return err
}

func runExtract(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("extract")
	format := fs.String("format", "CSV", "destination format (CSV, NEWLINE_DELIMITED_JSON, AVRO)")
	gzip := fs.Bool("gzip", false, "gzip the exported files")
	noHeader := fs.Bool("no-header", false, "omit the CSV header row")
	bucket := fs.String("bucket", "", "write to this object name in this bucket")
	pos, err := parseArgs(fs, args, 3)
	if err != nil {
		return err
	}

	dst, err := a.objectArg(ctx, *bucket, pos[2])
	if err != nil {
		return err
	}
	opts := bigquery.ExtractOptions{Format: *format, Gzip: *gzip, DisableHeader: *noHeader}
	if _, err := a.bq.Extract(ctx, pos[0], pos[1], dst, opts); err != nil {
		return err
	}

	if dst.IsWildcard() {
		return nil
	}
	gc, err := a.storage(ctx)
	if err != nil {
		log.Warningf("skipping size check: %v", err)
		return nil
	}
	attrs, err := gc.Attrs(ctx, dst)
	if err != nil {
		log.Warningf("exported object not readable: %v", err)
		return nil
	}
	log.Infof("Exported %s (%d bytes).", dst, attrs.Size)
	return nil
}

// readRows decodes a JSON array of objects. Numbers are kept as json.Number
// so large INT64 values survive.
func readRows(r io.Reader) ([]bigquery.Row, error) {
	var raw []map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	rows := make([]bigquery.Row, 0, len(raw))
	for _, obj := range raw {
		row := make(bigquery.Row, len(obj))
		for k, v := range obj {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func runInsert(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("insert")
	pos, err := parseArgs(fs, args, 3)
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if pos[2] != "-" {
		f, err := os.Open(pos[2])
		if err != nil {
			return fmt.Errorf("failed to open rows: %w", err)
		}
		defer f.Close()
		r = f
	}
	rows, err := readRows(r)
	if err != nil {
		return err
	}

	err = a.bq.InsertRows(ctx, pos[0], pos[1], rows)
	switch bigquery.InsertOutcomeOf(err) {
	case bigquery.InsertSucceeded:
		fmt.Fprintf(a.out, "Inserted %d rows.\n", len(rows))
	case bigquery.InsertPartial:
		fmt.Fprintln(a.out, "Insert errors:")
		printRejectedRows(a.out, bigquery.RejectedRows(err))
	case bigquery.InsertFailed:
		if rejected := bigquery.RejectedRows(err); len(rejected) > 0 {
			fmt.Fprintln(a.out, "Insert errors:")
			printRejectedRows(a.out, rejected)
		}
	}
	return err
}

func printRejectedRows(w io.Writer, rows []bigquery.RowError) {
	for _, row := range rows {
		for _, cause := range row.Causes {
			fmt.Fprintf(w, "  row %d: %s\n", row.Index, cause)
		}
	}
}

func runQuery(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("query")
	legacy := fs.Bool("legacy", a.cfg.Dialect() == bigquery.LegacySQL, "use legacy SQL")
	async := fs.Bool("async", false, "run as a job and wait for it without a client timeout")
	timeout := fs.Duration("timeout", a.cfg.Query.Timeout, "budget for synchronous queries")
	pos, err := parseText(fs, args, 1)
	if err != nil {
		return err
	}
	sql := strings.Join(pos, " ")
	dialect := dialectOf(*legacy)

	var set *bigquery.RowSet
	if *async {
		set, err = a.bq.RunQueryJob(ctx, bigquery.QueryJobRequest{SQL: sql, Dialect: dialect})
	} else {
		set, err = a.bq.Query(ctx, sql, bigquery.QueryOptions{Dialect: dialect, Timeout: *timeout})
	}
	if err != nil {
		return err
	}
	return printRows(a.out, set)
}

func runCreateTableFromQuery(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("create-table-from-query")
	legacy := fs.Bool("legacy", a.cfg.Dialect() == bigquery.LegacySQL, "use legacy SQL")
	pos, err := parseText(fs, args, 3)
	if err != nil {
		return err
	}

	dialect := dialectOf(*legacy)
	ref := clipboard.TableRef(a.bq.GetProjectID(), pos[0], pos[1])
	if dialect == bigquery.LegacySQL {
		ref = clipboard.LegacyTableRef(a.bq.GetProjectID(), pos[0], pos[1])
	}

	if _, err := a.bq.CreateTableFromQuery(ctx, strings.Join(pos[2:], " "), pos[0], pos[1], dialect); err != nil {
		return err
	}
	a.invalidate(pos[0])
	fmt.Fprintf(a.out, "Table %s created.\n", ref)
	return nil
}

func dialectOf(legacy bool) bigquery.Dialect {
	if legacy {
		return bigquery.LegacySQL
	}
	return bigquery.StandardSQL
}

func runBrowse(ctx context.Context, a *app, args []string) error {
	if _, err := parseArgs(newFlagSet("browse"), args, 0); err != nil {
		return err
	}

	program := tea.NewProgram(
		tui.NewModel(ctx, a.bq, a.cache),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
