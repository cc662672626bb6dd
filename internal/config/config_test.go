package config

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const validConfigYAML = `
project: my-project
location: EU
emulator:
  bigquery: http://localhost:9050
query:
  dialect: legacy
  timeout: 30s
load:
  format: CSV
  skipLeadingRows: 1
cache:
  disabled: true
`

type fakeReaderFactory struct {
	objects map[string]string
}

func (f *fakeReaderFactory) NewReader(_ context.Context, bucket, object string) (io.ReadCloser, error) {
	data, ok := f.objects["gs://"+bucket+"/"+object]
	if !ok {
		return nil, errors.New("object does not exist")
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func TestLoad(t *testing.T) {
	wantConfig := &Config{
		Project:  "my-project",
		Location: "EU",
		Emulator: Emulator{BigQuery: "http://localhost:9050"},
		Query:    Query{Dialect: "legacy", Timeout: 30 * time.Second},
		Load:     LoadDefaults{Format: "CSV", SkipLeadingRows: 1},
		Cache:    Cache{TTL: DefaultCacheTTL, Disabled: true},
	}

	local := filepath.Join(t.TempDir(), "bqutil.yaml")
	if err := os.WriteFile(local, []byte(validConfigYAML), 0644); err != nil {
		t.Fatal(err)
	}

	rf := &fakeReaderFactory{objects: map[string]string{
		"gs://path/to/my/config.yaml": validConfigYAML,
		"gs://path/to/bad.yaml":       "project: p\nunknownKey: 1\n",
	}}

	for _, tc := range []struct {
		name    string
		path    string
		wantErr bool
	}{{
		name: "local file",
		path: local,
	}, {
		name: "gcs object",
		path: "gs://path/to/my/config.yaml",
	}, {
		name:    "missing gcs object",
		path:    "gs://path/to/nowhere.yaml",
		wantErr: true,
	}, {
		name:    "unknown key rejected",
		path:    "gs://path/to/bad.yaml",
		wantErr: true,
	}, {
		name:    "bad gcs path",
		path:    "gs://bucket-only",
		wantErr: true,
	}, {
		name:    "missing local file",
		path:    filepath.Join(t.TempDir(), "absent.yaml"),
		wantErr: true,
	}} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Load(context.Background(), rf, tc.path)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Load(%q) error = %v, wantErr %v", tc.path, err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if diff := cmp.Diff(wantConfig, got); diff != "" {
				t.Errorf("Load(%q) mismatch (-want +got):\n%s", tc.path, diff)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Decode of empty document failed: %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("empty document should yield defaults (-want +got):\n%s", diff)
	}
}

func TestDecodeDialect(t *testing.T) {
	for _, tc := range []struct {
		doc     string
		want    string
		wantErr bool
	}{
		{doc: "query:\n  dialect: LEGACY\n", want: "legacy"},
		{doc: "query:\n  dialect: ''\n", want: "standard"},
		{doc: "query:\n  dialect: legcy\n", wantErr: true},
	} {
		got, err := Decode(strings.NewReader(tc.doc))
		if (err != nil) != tc.wantErr {
			t.Fatalf("Decode(%q) error = %v, wantErr %v", tc.doc, err, tc.wantErr)
		}
		if tc.wantErr {
			continue
		}
		if got.Query.Dialect != tc.want {
			t.Errorf("Decode(%q) dialect = %q, want %q", tc.doc, got.Query.Dialect, tc.want)
		}
		if got.Dialect().String() != tc.want {
			t.Errorf("Dialect() = %v, want %s", got.Dialect(), tc.want)
		}
	}
}

func TestResolveProject(t *testing.T) {
	orig := gcloudDefaultProject
	t.Cleanup(func() { gcloudDefaultProject = orig })

	gcloudDefaultProject = func() string { return "from-gcloud" }
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "")

	cfg := &Config{Project: "from-config"}
	if got, _ := cfg.ResolveProject(); got != "from-config" {
		t.Errorf("ResolveProject() = %q, want from-config", got)
	}

	cfg.Project = ""
	if got, _ := cfg.ResolveProject(); got != "from-gcloud" {
		t.Errorf("ResolveProject() = %q, want from-gcloud", got)
	}

	t.Setenv("GCP_PROJECT", "from-gcp-env")
	if got, _ := cfg.ResolveProject(); got != "from-gcp-env" {
		t.Errorf("ResolveProject() = %q, want from-gcp-env", got)
	}

	t.Setenv("GOOGLE_CLOUD_PROJECT", "from-google-env")
	if got, _ := cfg.ResolveProject(); got != "from-google-env" {
		t.Errorf("ResolveProject() = %q, want from-google-env", got)
	}

	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "")
	gcloudDefaultProject = func() string { return "" }
	if _, err := cfg.ResolveProject(); err == nil {
		t.Error("ResolveProject() with nothing configured should fail")
	}
}
