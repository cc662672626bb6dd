package bigquery

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"google.golang.org/api/googleapi"
)

func TestCheckStatus(t *testing.T) {
	for _, tc := range []struct {
		name       string
		status     *bigquery.JobStatus
		wantErr    bool
		wantState  string
		wantErrors []string
	}{{
		name:      "done without errors",
		status:    &bigquery.JobStatus{State: bigquery.Done},
		wantState: "done",
	}, {
		name: "done with record errors",
		status: &bigquery.JobStatus{
			State:  bigquery.Done,
			Errors: []*bigquery.Error{{Message: "bad row 7"}, {Reason: "invalid"}},
		},
		wantErr:    true,
		wantState:  "done",
		wantErrors: []string{"bad row 7", "invalid"},
	}, {
		name:      "still running",
		status:    &bigquery.JobStatus{State: bigquery.Running},
		wantErr:   true,
		wantState: "running",
	}, {
		name:      "pending with no errors",
		status:    &bigquery.JobStatus{State: bigquery.Pending},
		wantErr:   true,
		wantState: "pending",
	}, {
		name:      "missing status",
		status:    nil,
		wantErr:   true,
		wantState: "unknown",
	}} {
		t.Run(tc.name, func(t *testing.T) {
			job, err := checkStatus("job-1", LoadJob, tc.status)
			if (err != nil) != tc.wantErr {
				t.Fatalf("checkStatus() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil {
				var jobErr *JobError
				if !errors.As(err, &jobErr) {
					t.Fatalf("expected *JobError, got %T", err)
				}
				if jobErr.JobID != "job-1" || jobErr.Kind != LoadJob {
					t.Errorf("unexpected job error identity: %+v", jobErr)
				}
			}
			if job.State != tc.wantState {
				t.Errorf("State = %q, want %q", job.State, tc.wantState)
			}
			if diff := cmp.Diff(tc.wantErrors, job.Errors, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Errors mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPartialFailure(t *testing.T) {
	multi := bigquery.PutMultiError{
		{
			InsertID: "row-1",
			RowIndex: 1,
			Errors:   bigquery.MultiError{&bigquery.Error{Message: "schema mismatch", Reason: "invalid"}},
		},
	}

	err := classifyInsertError(multi, 2)

	if got := InsertOutcomeOf(err); got != InsertPartial {
		t.Fatalf("InsertOutcomeOf() = %v, want %v", got, InsertPartial)
	}

	var pf *PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("expected *PartialFailureError, got %T", err)
	}
	want := []RowError{{Index: 1, InsertID: "row-1", Causes: []string{"schema mismatch"}}}
	if diff := cmp.Diff(want, pf.Rows); diff != "" {
		t.Errorf("rejected rows mismatch (-want +got):\n%s", diff)
	}
	if pf.Total != 2 {
		t.Errorf("Total = %d, want 2", pf.Total)
	}
}

func TestPartialFailureIgnoresStoppedRows(t *testing.T) {
	multi := bigquery.PutMultiError{
		{RowIndex: 0, Errors: bigquery.MultiError{&bigquery.Error{Reason: "stopped"}}},
		{RowIndex: 1, Errors: bigquery.MultiError{&bigquery.Error{Reason: "invalid", Message: "schema mismatch"}}},
	}

	err := classifyInsertError(multi, 2)
	if got := InsertOutcomeOf(err); got != InsertPartial {
		t.Fatalf("InsertOutcomeOf() = %v, want %v", got, InsertPartial)
	}
	want := []RowError{{Index: 1, Causes: []string{"schema mismatch"}}}
	if diff := cmp.Diff(want, RejectedRows(err), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("rejected rows mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertTotalFailure(t *testing.T) {
	allRejected := bigquery.PutMultiError{
		{RowIndex: 0, Errors: bigquery.MultiError{errors.New("no such field")}},
		{RowIndex: 1, Errors: bigquery.MultiError{errors.New("no such field")}},
	}
	err := classifyInsertError(allRejected, 2)
	if got := InsertOutcomeOf(err); got != InsertFailed {
		t.Errorf("all rows rejected: outcome = %v, want %v", got, InsertFailed)
	}
	var insertErr *InsertError
	if !errors.As(err, &insertErr) {
		t.Fatalf("expected *InsertError, got %T", err)
	}
	if len(RejectedRows(err)) != 2 {
		t.Errorf("RejectedRows() = %v, want both rows", RejectedRows(err))
	}
	if want := "failed to insert rows: all 2 rows rejected; row 0: no such field; row 1: no such field"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	allStopped := bigquery.PutMultiError{
		{RowIndex: 0, Errors: bigquery.MultiError{&bigquery.Error{Reason: "stopped"}}},
	}
	if got := len(RejectedRows(classifyInsertError(allStopped, 1))); got != 1 {
		t.Errorf("stopped-only request: rejected rows = %d, want 1", got)
	}

	transport := &googleapi.Error{Code: http.StatusForbidden, Message: "no authorization"}
	err = classifyInsertError(transport, 2)
	if got := InsertOutcomeOf(err); got != InsertFailed {
		t.Errorf("transport error: outcome = %v, want %v", got, InsertFailed)
	}
	if !errors.Is(err, transport) {
		t.Errorf("transport error should be wrapped, got %v", err)
	}

	if got := InsertOutcomeOf(nil); got != InsertSucceeded {
		t.Errorf("nil error: outcome = %v, want %v", got, InsertSucceeded)
	}
}

func TestIsConflict(t *testing.T) {
	notFound := &googleapi.Error{Code: http.StatusNotFound}
	conflict := fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusConflict, Message: "Already Exists"})

	if !isConflict(conflict) {
		t.Error("isConflict should see through wrapping")
	}
	if isConflict(notFound) {
		t.Error("not found reported as conflict")
	}
}
