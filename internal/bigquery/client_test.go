package bigquery

import (
	"context"
	"errors"
	"sort"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/goccy/bigquery-emulator/server"
	"github.com/goccy/bigquery-emulator/types"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
)

func setupTestServer() (*server.Server, string, func(), error) {
	testServer, err := server.New(server.TempStorage)
	if err != nil {
		return nil, "", nil, err
	}

	if err := testServer.Load(
		server.StructSource(
			types.NewProject("test-project",
				types.NewDataset("sales",
					types.NewTable("orders",
						[]*types.Column{
							{Name: "id", Type: types.INTEGER},
							{Name: "amt", Type: types.FLOAT},
							{Name: "created_at", Type: types.TIMESTAMP},
						},
						types.Data{
							{
								"id":         1,
								"amt":        10.5,
								"created_at": "2023-01-01 00:00:00",
							},
							{
								"id":         2,
								"amt":        20.25,
								"created_at": "2023-01-02 00:00:00",
							},
						},
					),
				),
			),
		),
	); err != nil {
		return nil, "", nil, err
	}

	if err := testServer.Start(); err != nil {
		return nil, "", nil, err
	}

	endpoint := testServer.URL()
	cleanup := func() {
		testServer.Stop()
	}

	return testServer, endpoint, cleanup, nil
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	_, endpoint, cleanup, err := setupTestServer()
	if err != nil {
		t.Fatalf("Failed to setup test server: %v", err)
	}
	t.Cleanup(cleanup)

	client, err := NewClient(context.Background(), "test-project",
		option.WithEndpoint(endpoint),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client
}

func TestNewClient(t *testing.T) {
	client := newTestClient(t)

	if client.GetProjectID() != "test-project" {
		t.Errorf("Expected project ID 'test-project', got '%s'", client.GetProjectID())
	}
}

func TestListDatasets(t *testing.T) {
	client := newTestClient(t)

	datasets, err := client.ListDatasets(context.Background())
	if err != nil {
		t.Fatalf("Failed to list datasets: %v", err)
	}

	if len(datasets) != 1 {
		t.Fatalf("Expected 1 dataset, got %d", len(datasets))
	}

	if datasets[0].ID != "sales" {
		t.Errorf("Expected dataset ID 'sales', got '%s'", datasets[0].ID)
	}
}

func TestCreateAndDeleteDataset(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if _, err := client.CreateDataset(ctx, "staging", DatasetOptions{Description: "scratch"}); err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}

	datasets, err := client.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("Failed to list datasets: %v", err)
	}
	var ids []string
	for _, ds := range datasets {
		ids = append(ids, ds.ID)
	}
	if diff := cmp.Diff([]string{"sales", "staging"}, ids); diff != "" {
		t.Errorf("datasets after create mismatch (-want +got):\n%s", diff)
	}

	if err := client.DeleteDataset(ctx, "staging", false); err != nil {
		t.Fatalf("Failed to delete dataset: %v", err)
	}

	datasets, err = client.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("Failed to list datasets: %v", err)
	}
	if len(datasets) != 1 {
		t.Errorf("Expected 1 dataset after delete, got %d", len(datasets))
	}
}

func TestCreateDatasetRejectsEmptyID(t *testing.T) {
	client := newTestClient(t)

	if _, err := client.CreateDataset(context.Background(), "  ", DatasetOptions{}); !errors.Is(err, ErrEmptyIdentifier) {
		t.Errorf("CreateDataset with blank ID: got %v, want ErrEmptyIdentifier", err)
	}
}

func TestTableLifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	schema := Schema{
		{Name: "id", Type: bigquery.IntegerFieldType},
		{Name: "amt", Type: bigquery.FloatFieldType},
	}
	if _, err := client.CreateTable(ctx, "sales", "2024", schema); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	ids, err := client.TableIDs(ctx, "sales")
	if err != nil {
		t.Fatalf("Failed to list table IDs: %v", err)
	}
	sort.Strings(ids)
	if diff := cmp.Diff([]string{"2024", "orders"}, ids); diff != "" {
		t.Errorf("table IDs mismatch (-want +got):\n%s", diff)
	}

	got, err := client.TableSchema(ctx, "sales", "2024")
	if err != nil {
		t.Fatalf("Failed to get table schema: %v", err)
	}
	var names []string
	for _, f := range got {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"id", "amt"}, names); diff != "" {
		t.Errorf("schema fields mismatch (-want +got):\n%s", diff)
	}

	if err := client.DeleteTable(ctx, "sales", "2024"); err != nil {
		t.Fatalf("Failed to delete table: %v", err)
	}

	tables, err := client.ListTables(ctx, "sales")
	if err != nil {
		t.Fatalf("Failed to list tables: %v", err)
	}
	if len(tables) != 1 || tables[0].ID != "orders" {
		t.Errorf("Expected only table 'orders' after delete, got %v", tables)
	}
}

func TestCreateTableRequiresSchema(t *testing.T) {
	client := newTestClient(t)

	if _, err := client.CreateTable(context.Background(), "sales", "empty", nil); !errors.Is(err, ErrEmptySchema) {
		t.Errorf("CreateTable without schema: got %v, want ErrEmptySchema", err)
	}
}

func TestBrowseRows(t *testing.T) {
	client := newTestClient(t)

	rs, err := client.BrowseRows(context.Background(), "sales", "orders", 0)
	if err != nil {
		t.Fatalf("Failed to browse rows: %v", err)
	}

	if len(rs.Rows) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(rs.Rows))
	}
	if diff := cmp.Diff([]string{"id", "amt", "created_at"}, rs.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	limited, err := client.BrowseRows(context.Background(), "sales", "orders", 1)
	if err != nil {
		t.Fatalf("Failed to browse rows with limit: %v", err)
	}
	if len(limited.Rows) != 1 {
		t.Errorf("Expected 1 row with limit 1, got %d", len(limited.Rows))
	}
}

func TestInsertRows(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	rows := []Row{
		{"id": 3, "amt": 1.0, "created_at": "2023-01-03 00:00:00"},
		{"id": 4, "amt": 2.0, "created_at": "2023-01-04 00:00:00"},
	}
	if err := client.InsertRows(ctx, "sales", "orders", rows); err != nil {
		t.Fatalf("Failed to insert rows: %v", err)
	}

	rs, err := client.BrowseRows(ctx, "sales", "orders", 0)
	if err != nil {
		t.Fatalf("Failed to browse rows: %v", err)
	}
	if len(rs.Rows) != 4 {
		t.Errorf("Expected 4 rows after insert, got %d", len(rs.Rows))
	}
}

func TestQuery(t *testing.T) {
	client := newTestClient(t)

	rs, err := client.Query(context.Background(),
		"SELECT id, amt FROM `test-project.sales.orders` ORDER BY id",
		QueryOptions{Dialect: StandardSQL})
	if err != nil {
		t.Fatalf("Failed to run query: %v", err)
	}

	if len(rs.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rs.Rows))
	}
	if rs.Rows[0]["id"] != int64(1) {
		t.Errorf("Expected first id 1, got %v", rs.Rows[0]["id"])
	}
}

func TestQueryTimeout(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Query(context.Background(),
		"SELECT id FROM `test-project.sales.orders`",
		QueryOptions{Timeout: 1})
	if !errors.Is(err, ErrQueryTimeout) {
		t.Fatalf("Expected ErrQueryTimeout, got %v", err)
	}

	var jobErr *JobError
	if errors.As(err, &jobErr) {
		t.Errorf("timeout must not be reported as a job failure: %v", err)
	}
}

func TestRunQueryJob(t *testing.T) {
	client := newTestClient(t)

	rs, err := client.RunQueryJob(context.Background(), QueryJobRequest{
		SQL: "SELECT COUNT(*) AS n FROM `test-project.sales.orders`",
	})
	if err != nil {
		t.Fatalf("Failed to run query job: %v", err)
	}

	if rs.JobID == "" {
		t.Error("Expected a job ID")
	}
	if len(rs.Rows) != 1 || rs.Rows[0]["n"] != int64(2) {
		t.Errorf("Expected a single row with n=2, got %v", rs.Rows)
	}
}

func TestRunQueryJobRejectsHalfDestination(t *testing.T) {
	client := newTestClient(t)

	_, err := client.RunQueryJob(context.Background(), QueryJobRequest{
		SQL:        "SELECT 1",
		DstDataset: "sales",
	})
	if !errors.Is(err, ErrEmptyIdentifier) {
		t.Errorf("Expected ErrEmptyIdentifier for missing destination table, got %v", err)
	}
}
