package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/golang/glog"
	"google.golang.org/api/option"

	"github.com/JesseCastro/bqutil/internal/bigquery"
	"github.com/JesseCastro/bqutil/internal/cache"
	"github.com/JesseCastro/bqutil/internal/config"
	"github.com/JesseCastro/bqutil/internal/gcs"
)

var (
	projectID       = flag.String("project", "", "BigQuery project ID (if not provided, will use default from config, environment or gcloud)")
	credFile        = flag.String("credentials", "", "Path to service account credentials file (optional)")
	emulator        = flag.String("emulator", "", "BigQuery emulator endpoint (for testing)")
	storageEmulator = flag.String("storage-emulator", "", "Cloud Storage emulator endpoint (for testing)")
	configPath      = flag.String("config", "", "Path to a YAML config file, local or gs://bucket/object")
	cacheTTL        = flag.Duration("cache-ttl", 0, "How long dataset and table listings stay cached (default from config, 24h)")
)

const (
	appVersion = "0.2.0"
	appName    = "bqutil"
)

// overrides are the global flags that take precedence over the config file.
type overrides struct {
	Project         string
	Credentials     string
	Emulator        string
	StorageEmulator string
	CacheTTL        time.Duration
}

func (o overrides) apply(cfg *config.Config) {
	if o.Project != "" {
		cfg.Project = o.Project
	}
	if o.Credentials != "" {
		cfg.Credentials = o.Credentials
	}
	if o.Emulator != "" {
		cfg.Emulator.BigQuery = o.Emulator
	}
	if o.StorageEmulator != "" {
		cfg.Emulator.Storage = o.StorageEmulator
	}
	if o.CacheTTL > 0 {
		cfg.Cache.TTL = o.CacheTTL
	}
}

// app holds the long-lived clients of one invocation.
type app struct {
	cfg   *config.Config
	bq    *bigquery.Client
	cache *cache.Cache
	out   io.Writer

	gcs *gcs.Client
}

func main() {
	// Log to stderr unless overridden on the command line.
	_ = flag.Set("logtostderr", "true")
	flag.Parse()
	defer log.Flush()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if args[0] == "version" {
		fmt.Printf("%s version %s\n", appName, appVersion)
		fmt.Println("BigQuery and Cloud Storage operations from the command line")
		return
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	o := overrides{
		Project:         *projectID,
		Credentials:     *credFile,
		Emulator:        *emulator,
		StorageEmulator: *storageEmulator,
		CacheTTL:        *cacheTTL,
	}
	a, err := newApp(ctx, o)
	if err != nil {
		log.Exitf("Failed to initialize: %v", err)
	}
	defer a.close()

	if err := cmd.run(ctx, a, args[1:]); err != nil {
		log.Errorf("%s: %v", args[0], err)
		log.Flush()
		a.close()
		os.Exit(1)
	}
}

func newApp(ctx context.Context, o overrides) (*app, error) {
	a := &app{out: os.Stdout}

	cfg := config.Default()
	if *configPath != "" {
		var rf config.ReaderFactory
		if strings.HasPrefix(*configPath, "gs://") {
			// Only the flags are known at this point.
			boot := config.Default()
			o.apply(boot)
			gc, err := newStorageClient(ctx, boot)
			if err != nil {
				return nil, err
			}
			a.gcs = gc
			rf = gc
		}
		loaded, err := config.Load(ctx, rf, *configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	o.apply(cfg)
	a.cfg = cfg

	bq, err := createBigQueryClient(ctx, cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	a.bq = bq
	if cfg.Location != "" {
		bq.SetLocation(cfg.Location)
	}

	if !cfg.Cache.Disabled {
		c, err := cache.New(cfg.Cache.TTL)
		if err != nil {
			log.Warningf("listing cache disabled: %v", err)
		} else {
			a.cache = c
		}
	}

	return a, nil
}

func (a *app) close() {
	if a.bq != nil {
		if err := a.bq.Close(); err != nil {
			log.Warningf("Error closing BigQuery client: %v", err)
		}
		a.bq = nil
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			log.Warningf("Error closing Cloud Storage client: %v", err)
		}
		a.gcs = nil
	}
}

// storage returns the Cloud Storage client, creating it on first use so
// BigQuery-only commands never need storage credentials.
func (a *app) storage(ctx context.Context) (*gcs.Client, error) {
	if a.gcs != nil {
		return a.gcs, nil
	}
	gc, err := newStorageClient(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	a.gcs = gc
	return gc, nil
}

func clientOptions(credentials, endpoint string) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	if credentials != "" {
		if _, err := os.Stat(credentials); os.IsNotExist(err) {
			return nil, fmt.Errorf("credentials file not found: %s", credentials)
		}
		opts = append(opts, option.WithCredentialsFile(credentials))
	}

	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
		opts = append(opts, option.WithoutAuthentication())
	}

	return opts, nil
}

func createBigQueryClient(ctx context.Context, cfg *config.Config) (*bigquery.Client, error) {
	opts, err := clientOptions(cfg.Credentials, cfg.Emulator.BigQuery)
	if err != nil {
		return nil, err
	}

	projID, err := cfg.ResolveProject()
	if err != nil {
		return nil, err
	}

	return bigquery.NewClient(ctx, projID, opts...)
}

func newStorageClient(ctx context.Context, cfg *config.Config) (*gcs.Client, error) {
	opts, err := clientOptions(cfg.Credentials, cfg.Emulator.Storage)
	if err != nil {
		return nil, err
	}
	gc, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Storage client: %w", err)
	}
	return gc, nil
}

func init() {
	flag.Usage = func() {
		fmt.Printf("%s - BigQuery and Cloud Storage operations\n\n", appName)
		fmt.Printf("Usage: %s [options] <command> [flags] [args]\n\n", appName)
		fmt.Println("Commands:")
		for _, name := range commandNames() {
			fmt.Printf("  %s\n", commands[name].usage)
		}
		fmt.Println("  version")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Environment Variables:")
		fmt.Println("  GOOGLE_APPLICATION_CREDENTIALS  Path to service account key file")
		fmt.Println("  GOOGLE_CLOUD_PROJECT             Default project ID")
		fmt.Println("  GCP_PROJECT                      Alternative project ID variable")
		fmt.Println()
		fmt.Printf("Version: %s\n", appVersion)
	}
}
