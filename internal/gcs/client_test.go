package gcs

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseURI(t *testing.T) {
	for _, tc := range []struct {
		name    string
		uri     string
		want    ObjectRef
		wantErr bool
	}{{
		name: "simple object",
		uri:  "gs://bucket/file.csv",
		want: ObjectRef{Bucket: "bucket", Object: "file.csv"},
	}, {
		name: "nested object",
		uri:  "gs://bucket/path/to/export-*.json",
		want: ObjectRef{Bucket: "bucket", Object: "path/to/export-*.json"},
	}, {
		name: "surrounding whitespace",
		uri:  "  gs://bucket/a.csv ",
		want: ObjectRef{Bucket: "bucket", Object: "a.csv"},
	}, {
		name:    "wrong scheme",
		uri:     "s3://bucket/file.csv",
		wantErr: true,
	}, {
		name:    "bucket only",
		uri:     "gs://bucket",
		wantErr: true,
	}, {
		name:    "empty object",
		uri:     "gs://bucket/",
		wantErr: true,
	}} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseURI(tc.uri)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidURI) {
					t.Fatalf("ParseURI(%q) error = %v, want ErrInvalidURI", tc.uri, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURI(%q) unexpected error: %v", tc.uri, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseURI(%q) mismatch (-want +got):\n%s", tc.uri, diff)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	c := &Client{}

	ref, err := c.Resolve("my-bucket", "/exports/orders.csv")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got, want := ref.URI(), "gs://my-bucket/exports/orders.csv"; got != want {
		t.Errorf("URI() = %q, want %q", got, want)
	}

	if _, err := c.Resolve(" ", "file.csv"); !errors.Is(err, ErrInvalidURI) {
		t.Errorf("Resolve with empty bucket: got %v, want ErrInvalidURI", err)
	}
	if _, err := c.Resolve("bucket", ""); !errors.Is(err, ErrInvalidURI) {
		t.Errorf("Resolve with empty object: got %v, want ErrInvalidURI", err)
	}
}

func TestIsWildcard(t *testing.T) {
	if (ObjectRef{Bucket: "b", Object: "out.csv"}).IsWildcard() {
		t.Error("plain object reported as wildcard")
	}
	if !(ObjectRef{Bucket: "b", Object: "out-*.csv"}).IsWildcard() {
		t.Error("wildcard object not reported as wildcard")
	}
}
