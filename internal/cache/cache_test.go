package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	bq "cloud.google.com/go/bigquery"
	"github.com/google/go-cmp/cmp"

	"github.com/JesseCastro/bqutil/internal/bigquery"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *time.Time) {
	t.Helper()
	c, err := NewAt(t.TempDir(), ttl)
	if err != nil {
		t.Fatalf("NewAt failed: %v", err)
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestDatasetsRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	if _, ok := c.GetDatasets("p"); ok {
		t.Fatal("GetDatasets on an empty cache should miss")
	}

	want := []*bigquery.Dataset{
		{ID: "sales", ProjectID: "p", Location: "US"},
		{ID: "staging", ProjectID: "p", Labels: map[string]string{"env": "dev"}},
	}
	if err := c.SetDatasets("p", want); err != nil {
		t.Fatalf("SetDatasets failed: %v", err)
	}

	got, ok := c.GetDatasets("p")
	if !ok {
		t.Fatal("GetDatasets missed after SetDatasets")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("datasets mismatch (-want +got):\n%s", diff)
	}
	if _, ok := c.GetDatasets("other"); ok {
		t.Error("GetDatasets hit for a different project")
	}
}

func TestExpiry(t *testing.T) {
	c, now := newTestCache(t, time.Hour)

	if err := c.SetTables("p", "sales", []*bigquery.Table{{ID: "orders", DatasetID: "sales"}}); err != nil {
		t.Fatalf("SetTables failed: %v", err)
	}

	*now = now.Add(59 * time.Minute)
	if _, ok := c.GetTables("p", "sales"); !ok {
		t.Error("GetTables missed before the TTL elapsed")
	}

	*now = now.Add(2 * time.Minute)
	if _, ok := c.GetTables("p", "sales"); ok {
		t.Error("GetTables hit after the TTL elapsed")
	}
}

func TestCorruptFileIsAMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	if err := os.WriteFile(c.datasetsFile("p"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.GetDatasets("p"); ok {
		t.Error("GetDatasets hit on a corrupt file")
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	want := bigquery.Schema{
		{Name: "id", Type: bq.IntegerFieldType, Required: true},
		{Name: "amt", Type: bq.FloatFieldType},
	}
	if err := c.SetSchema("p", "sales", "orders", want); err != nil {
		t.Fatalf("SetSchema failed: %v", err)
	}
	got, ok := c.GetSchema("p", "sales", "orders")
	if !ok {
		t.Fatal("GetSchema missed after SetSchema")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidateDataset(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	mustSet := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	mustSet(c.SetDatasets("p", []*bigquery.Dataset{{ID: "sales"}}))
	mustSet(c.SetTables("p", "sales", []*bigquery.Table{{ID: "orders"}}))
	mustSet(c.SetTables("p", "staging", []*bigquery.Table{{ID: "raw"}}))
	mustSet(c.SetSchema("p", "sales", "orders", bigquery.Schema{{Name: "id", Type: bq.IntegerFieldType}}))

	if err := c.InvalidateDataset("p", "sales"); err != nil {
		t.Fatalf("InvalidateDataset failed: %v", err)
	}

	if _, ok := c.GetDatasets("p"); ok {
		t.Error("dataset listing survived invalidation")
	}
	if _, ok := c.GetTables("p", "sales"); ok {
		t.Error("table listing survived invalidation")
	}
	if _, ok := c.GetSchema("p", "sales", "orders"); ok {
		t.Error("schema survived invalidation")
	}
	if _, ok := c.GetTables("p", "staging"); !ok {
		t.Error("unrelated dataset's tables were invalidated")
	}

	// Clearing twice is not an error.
	if err := c.InvalidateDataset("p", "sales"); err != nil {
		t.Errorf("second InvalidateDataset failed: %v", err)
	}
}

func TestNewAtDefaultsTTL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	c, err := NewAt(dir, 0)
	if err != nil {
		t.Fatalf("NewAt failed: %v", err)
	}
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("cache directory not created: %v", err)
	}
}
