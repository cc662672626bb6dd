package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	log "github.com/golang/glog"
	"gopkg.in/yaml.v2"

	"github.com/JesseCastro/bqutil/internal/bigquery"
	"github.com/JesseCastro/bqutil/internal/gcs"
)

const (
	DefaultQueryTimeout = 10 * time.Second
	DefaultCacheTTL     = 24 * time.Hour
)

// Config is the YAML configuration file.
type Config struct {
	Project     string       `yaml:"project"`
	Credentials string       `yaml:"credentials"`
	Location    string       `yaml:"location"`
	Emulator    Emulator     `yaml:"emulator"`
	Query       Query        `yaml:"query"`
	Load        LoadDefaults `yaml:"load"`
	Cache       Cache        `yaml:"cache"`
}

type Emulator struct {
	BigQuery string `yaml:"bigquery"`
	Storage  string `yaml:"storage"`
}

type Query struct {
	Dialect string        `yaml:"dialect"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoadDefaults are the load options used when a command does not set them.
type LoadDefaults struct {
	Format          string `yaml:"format"`
	SkipLeadingRows int64  `yaml:"skipLeadingRows"`
}

type Cache struct {
	TTL      time.Duration `yaml:"ttl"`
	Disabled bool          `yaml:"disabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Query: Query{Dialect: "standard", Timeout: DefaultQueryTimeout},
		Cache: Cache{TTL: DefaultCacheTTL},
	}
}

// ReaderFactory opens Cloud Storage objects.
type ReaderFactory interface {
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// Load reads the configuration at path, which is either a local file or a
// gs://bucket/object URI. Unset values keep their defaults.
func Load(ctx context.Context, rf ReaderFactory, path string) (*Config, error) {
	r, err := open(ctx, rf, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	cfg, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration from YAML at %q: %w", path, err)
	}
	log.V(2).Infof("got config from %q: %+v", path, cfg)
	return cfg, nil
}

func open(ctx context.Context, rf ReaderFactory, path string) (io.ReadCloser, error) {
	if !strings.HasPrefix(path, "gs://") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config: %w", err)
		}
		return f, nil
	}

	if rf == nil {
		return nil, fmt.Errorf("no Cloud Storage reader available for %q", path)
	}
	ref, err := gcs.ParseURI(path)
	if err != nil {
		return nil, err
	}
	r, err := rf.NewReader(ctx, ref.Bucket, ref.Object)
	if err != nil {
		return nil, fmt.Errorf("failed to get reader for (bucket=%q, object=%q): %w", ref.Bucket, ref.Object, err)
	}
	return r, nil
}

// Decode parses a strict YAML document on top of Default().
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dcd := yaml.NewDecoder(r)
	dcd.SetStrict(true)
	if err := dcd.Decode(cfg); err != nil && err != io.EOF {
		return nil, err
	}
	if cfg.Query.Timeout <= 0 {
		cfg.Query.Timeout = DefaultQueryTimeout
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	dialect, err := bigquery.ParseDialect(cfg.Query.Dialect)
	if err != nil {
		return nil, fmt.Errorf("query.dialect: %w", err)
	}
	cfg.Query.Dialect = dialect.String()
	return cfg, nil
}

// Dialect returns the configured default SQL dialect.
func (c *Config) Dialect() bigquery.Dialect {
	d, err := bigquery.ParseDialect(c.Query.Dialect)
	if err != nil {
		log.Warningf("%v, using standard SQL", err)
	}
	return d
}

// ResolveProject picks the project from the configuration, then the
// environment, then the gcloud CLI.
func (c *Config) ResolveProject() (string, error) {
	if c.Project != "" {
		return c.Project, nil
	}
	if projID := DetectDefaultProject(); projID != "" {
		return projID, nil
	}
	return "", fmt.Errorf("no project found. Please run 'gcloud config set project PROJECT_ID' or use -project flag")
}

func DetectDefaultProject() string {
	if projID := os.Getenv("GOOGLE_CLOUD_PROJECT"); projID != "" {
		return projID
	}
	if projID := os.Getenv("GCP_PROJECT"); projID != "" {
		return projID
	}
	return gcloudDefaultProject()
}

var gcloudDefaultProject = func() string {
	cmd := exec.Command("gcloud", "config", "get-value", "project")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}

	projectID := strings.TrimSpace(string(output))
	if projectID == "(unset)" || projectID == "" {
		return ""
	}

	return projectID
}
