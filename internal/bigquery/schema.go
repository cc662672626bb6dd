package bigquery

import (
	"fmt"
	"path/filepath"
	"strings"

	"cloud.google.com/go/bigquery"

	"github.com/JesseCastro/bqutil/internal/gcs"
)

var typeAliases = map[string]bigquery.FieldType{
	"STRING":     bigquery.StringFieldType,
	"STR":        bigquery.StringFieldType,
	"BYTES":      bigquery.BytesFieldType,
	"INTEGER":    bigquery.IntegerFieldType,
	"INT":        bigquery.IntegerFieldType,
	"INT64":      bigquery.IntegerFieldType,
	"FLOAT":      bigquery.FloatFieldType,
	"FLOAT64":    bigquery.FloatFieldType,
	"NUMERIC":    bigquery.NumericFieldType,
	"BIGNUMERIC": bigquery.BigNumericFieldType,
	"BOOLEAN":    bigquery.BooleanFieldType,
	"BOOL":       bigquery.BooleanFieldType,
	"TIMESTAMP":  bigquery.TimestampFieldType,
	"DATE":       bigquery.DateFieldType,
	"TIME":       bigquery.TimeFieldType,
	"DATETIME":   bigquery.DateTimeFieldType,
	"GEOGRAPHY":  bigquery.GeographyFieldType,
	"JSON":       bigquery.JSONFieldType,
}

// ParseFieldType maps a type name, including common aliases such as INT or
// BOOL, to a BigQuery field type.
func ParseFieldType(name string) (bigquery.FieldType, error) {
	ft, ok := typeAliases[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown field type %q", name)
	}
	return ft, nil
}

// ParseSchema parses a comma separated list of name:type pairs, e.g.
// "id:INT,amt:FLOAT". A field without a type defaults to STRING.
func ParseSchema(def string) (Schema, error) {
	var schema Schema
	for _, part := range strings.Split(def, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, typ, found := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("field %q has no name", part)
		}

		ft := bigquery.StringFieldType
		if found {
			var err error
			if ft, err = ParseFieldType(typ); err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
		}
		schema = append(schema, &Field{Name: name, Type: ft})
	}

	if len(schema) == 0 {
		return nil, ErrEmptySchema
	}
	return schema, nil
}

func (s Schema) String() string {
	parts := make([]string, 0, len(s))
	for _, f := range s {
		parts = append(parts, fmt.Sprintf("%s:%s", f.Name, f.Type))
	}
	return strings.Join(parts, ",")
}

func (s Schema) toBigQuery() bigquery.Schema {
	out := make(bigquery.Schema, 0, len(s))
	for _, f := range s {
		out = append(out, f.toBigQuery())
	}
	return out
}

func (f *Field) toBigQuery() *bigquery.FieldSchema {
	fs := &bigquery.FieldSchema{
		Name:     f.Name,
		Type:     f.Type,
		Repeated: f.Repeated,
		Required: f.Required,
	}
	for _, sub := range f.Fields {
		fs.Schema = append(fs.Schema, sub.toBigQuery())
	}
	return fs
}

func convertBigQuerySchema(schema bigquery.Schema) Schema {
	var fields Schema
	for _, field := range schema {
		fields = append(fields, convertBigQueryField(field))
	}
	return fields
}

func convertBigQueryField(field *bigquery.FieldSchema) *Field {
	f := &Field{
		Name:     field.Name,
		Type:     field.Type,
		Repeated: field.Repeated,
		Required: field.Required,
	}
	for _, sub := range field.Schema {
		f.Fields = append(f.Fields, convertBigQueryField(sub))
	}
	return f
}

// ParseSource accepts "local:<path>", "gs://bucket/object" or a bare local path.
func ParseSource(s string) (Source, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Source{}, fmt.Errorf("%w: empty source", ErrInvalidSource)
	case strings.HasPrefix(s, "gs://"):
		ref, err := gcs.ParseURI(s)
		if err != nil {
			return Source{}, fmt.Errorf("%w: %v", ErrInvalidSource, err)
		}
		return Source{Object: &ref}, nil
	case strings.HasPrefix(s, "local:"):
		path := strings.TrimPrefix(s, "local:")
		if path == "" {
			return Source{}, fmt.Errorf("%w: empty local path", ErrInvalidSource)
		}
		return Source{LocalPath: path}, nil
	default:
		return Source{LocalPath: s}, nil
	}
}

func inferFormat(name string) bigquery.DataFormat {
	switch strings.ToLower(filepath.Ext(strings.TrimSuffix(name, ".gz"))) {
	case ".json", ".ndjson", ".jsonl":
		return bigquery.JSON
	case ".avro":
		return bigquery.Avro
	case ".parquet":
		return bigquery.Parquet
	case ".orc":
		return bigquery.ORC
	default:
		return bigquery.CSV
	}
}

func dataFormat(name, format string) bigquery.DataFormat {
	if format == "" {
		return inferFormat(name)
	}
	switch strings.ToUpper(format) {
	case "JSON", "NDJSON":
		return bigquery.JSON
	default:
		return bigquery.DataFormat(strings.ToUpper(format))
	}
}
