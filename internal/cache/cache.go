package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	log "github.com/golang/glog"

	"github.com/JesseCastro/bqutil/internal/bigquery"
)

const DefaultTTL = 24 * time.Hour

// Cache keeps dataset and table listings on disk so the browser and the
// list commands can skip a round trip.
type Cache struct {
	baseDir string
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache in the OS-appropriate cache directory.
func New(ttl time.Duration) (*Cache, error) {
	cacheDir, err := getCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache directory: %w", err)
	}
	return NewAt(filepath.Join(cacheDir, "bqutil"), ttl)
}

// NewAt creates a cache rooted at dir.
func NewAt(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{baseDir: dir, ttl: ttl, now: time.Now}, nil
}

// getCacheDir returns the appropriate cache directory for the OS
func getCacheDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		cacheDir := os.Getenv("LOCALAPPDATA")
		if cacheDir == "" {
			cacheDir = os.Getenv("TEMP")
		}
		if cacheDir == "" {
			return "", fmt.Errorf("cannot determine cache directory on Windows")
		}
		return cacheDir, nil
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(homeDir, "Library", "Caches"), nil
	default:
		cacheDir := os.Getenv("XDG_CACHE_HOME")
		if cacheDir != "" {
			return cacheDir, nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(homeDir, ".cache"), nil
	}
}

type CachedDatasets struct {
	Datasets  []*bigquery.Dataset `json:"datasets"`
	ProjectID string              `json:"project_id"`
	CachedAt  time.Time           `json:"cached_at"`
}

type CachedTables struct {
	Tables    []*bigquery.Table `json:"tables"`
	DatasetID string            `json:"dataset_id"`
	ProjectID string            `json:"project_id"`
	CachedAt  time.Time         `json:"cached_at"`
}

type CachedSchema struct {
	Schema    bigquery.Schema `json:"schema"`
	TableID   string          `json:"table_id"`
	DatasetID string          `json:"dataset_id"`
	ProjectID string          `json:"project_id"`
	CachedAt  time.Time       `json:"cached_at"`
}

func (c *Cache) datasetsFile(projectID string) string {
	return filepath.Join(c.baseDir, fmt.Sprintf("datasets_%s.json", projectID))
}

func (c *Cache) tablesFile(projectID, datasetID string) string {
	return filepath.Join(c.baseDir, fmt.Sprintf("tables_%s_%s.json", projectID, datasetID))
}

func (c *Cache) schemaFile(projectID, datasetID, tableID string) string {
	return filepath.Join(c.baseDir, fmt.Sprintf("schema_%s_%s_%s.json", projectID, datasetID, tableID))
}

// read decodes filename into v and reports whether it was fresh.
func (c *Cache) read(filename string, v any, cachedAt func() time.Time) bool {
	data, err := os.ReadFile(filename)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Warningf("ignoring corrupt cache file %s: %v", filename, err)
		return false
	}
	if c.now().Sub(cachedAt()) > c.ttl {
		log.V(2).Infof("cache file %s expired", filename)
		return false
	}
	return true
}

func (c *Cache) write(filename string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(filename), err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

func (c *Cache) GetDatasets(projectID string) ([]*bigquery.Dataset, bool) {
	var cached CachedDatasets
	if !c.read(c.datasetsFile(projectID), &cached, func() time.Time { return cached.CachedAt }) {
		return nil, false
	}
	return cached.Datasets, true
}

func (c *Cache) SetDatasets(projectID string, datasets []*bigquery.Dataset) error {
	return c.write(c.datasetsFile(projectID), CachedDatasets{
		Datasets:  datasets,
		ProjectID: projectID,
		CachedAt:  c.now(),
	})
}

func (c *Cache) GetTables(projectID, datasetID string) ([]*bigquery.Table, bool) {
	var cached CachedTables
	if !c.read(c.tablesFile(projectID, datasetID), &cached, func() time.Time { return cached.CachedAt }) {
		return nil, false
	}
	return cached.Tables, true
}

func (c *Cache) SetTables(projectID, datasetID string, tables []*bigquery.Table) error {
	return c.write(c.tablesFile(projectID, datasetID), CachedTables{
		Tables:    tables,
		DatasetID: datasetID,
		ProjectID: projectID,
		CachedAt:  c.now(),
	})
}

func (c *Cache) GetSchema(projectID, datasetID, tableID string) (bigquery.Schema, bool) {
	var cached CachedSchema
	if !c.read(c.schemaFile(projectID, datasetID, tableID), &cached, func() time.Time { return cached.CachedAt }) {
		return nil, false
	}
	return cached.Schema, true
}

func (c *Cache) SetSchema(projectID, datasetID, tableID string, schema bigquery.Schema) error {
	return c.write(c.schemaFile(projectID, datasetID, tableID), CachedSchema{
		Schema:    schema,
		TableID:   tableID,
		DatasetID: datasetID,
		ProjectID: projectID,
		CachedAt:  c.now(),
	})
}

func remove(filename string) error {
	err := os.Remove(filename)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ClearDatasets removes cached datasets for a project
func (c *Cache) ClearDatasets(projectID string) error {
	return remove(c.datasetsFile(projectID))
}

// ClearTables removes cached tables for a dataset
func (c *Cache) ClearTables(projectID, datasetID string) error {
	return remove(c.tablesFile(projectID, datasetID))
}

// ClearSchema removes cached schema for a table
func (c *Cache) ClearSchema(projectID, datasetID, tableID string) error {
	return remove(c.schemaFile(projectID, datasetID, tableID))
}

// ClearAllTablesInDataset removes all cached tables and schemas for a dataset
func (c *Cache) ClearAllTablesInDataset(projectID, datasetID string) error {
	if err := c.ClearTables(projectID, datasetID); err != nil {
		return err
	}

	pattern := fmt.Sprintf("schema_%s_%s_*.json", projectID, datasetID)
	matches, err := filepath.Glob(filepath.Join(c.baseDir, pattern))
	if err != nil {
		return err
	}

	for _, match := range matches {
		if err := remove(match); err != nil {
			return err
		}
	}

	return nil
}

// InvalidateDataset drops every cached entry a change to datasetID can make
// stale: the project's dataset listing and the dataset's tables and schemas.
func (c *Cache) InvalidateDataset(projectID, datasetID string) error {
	if err := c.ClearDatasets(projectID); err != nil {
		return err
	}
	return c.ClearAllTablesInDataset(projectID, datasetID)
}
