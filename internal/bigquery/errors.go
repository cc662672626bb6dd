package bigquery

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

var (
	ErrEmptyIdentifier = errors.New("identifier must be non-empty")
	ErrEmptySchema     = errors.New("schema must have at least one field")
	ErrInvalidSource   = errors.New("invalid load source")
	ErrTableExists     = errors.New("table already exists")
	ErrQueryTimeout    = errors.New("query did not complete within its time budget")
)

// JobError reports a job that finished without success or that carried errors.
type JobError struct {
	JobID  string
	Kind   JobKind
	State  string
	Errors []string
}

func (e *JobError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s job %s ended in state %s", e.Kind, e.JobID, e.State)
	}
	return fmt.Sprintf("%s job %s failed: %s", e.Kind, e.JobID, strings.Join(e.Errors, "; "))
}

// RowError carries the causes for one rejected row of a streaming insert.
type RowError struct {
	Index    int
	InsertID string
	Causes   []string
}

// PartialFailureError is returned by InsertRows when the service accepted some
// rows and rejected others.
type PartialFailureError struct {
	Total int
	Rows  []RowError
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d of %d rows rejected", len(e.Rows), e.Total)
}

// InsertError is returned by InsertRows when every row was rejected.
type InsertError struct {
	Total int
	Rows  []RowError
}

func (e *InsertError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to insert rows: all %d rows rejected", e.Total)
	for _, row := range e.Rows {
		fmt.Fprintf(&b, "; row %d: %s", row.Index, strings.Join(row.Causes, ", "))
	}
	return b.String()
}

// RejectedRows returns the per-row causes carried by an insert error.
func RejectedRows(err error) []RowError {
	var pf *PartialFailureError
	if errors.As(err, &pf) {
		return pf.Rows
	}
	var ie *InsertError
	if errors.As(err, &ie) {
		return ie.Rows
	}
	return nil
}

type InsertOutcome int

const (
	InsertSucceeded InsertOutcome = iota
	InsertPartial
	InsertFailed
)

func (o InsertOutcome) String() string {
	switch o {
	case InsertSucceeded:
		return "success"
	case InsertPartial:
		return "partial failure"
	default:
		return "failure"
	}
}

// InsertOutcomeOf classifies the error returned by InsertRows.
func InsertOutcomeOf(err error) InsertOutcome {
	if err == nil {
		return InsertSucceeded
	}
	var pf *PartialFailureError
	if errors.As(err, &pf) {
		return InsertPartial
	}
	return InsertFailed
}

func isHTTPStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func isConflict(err error) bool {
	return isHTTPStatus(err, http.StatusConflict)
}

func errorMessages(errs []*bigquery.Error) []string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e == nil {
			continue
		}
		msgs = append(msgs, describe(e))
	}
	return msgs
}

func describe(err error) string {
	var bqErr *bigquery.Error
	if errors.As(err, &bqErr) {
		if bqErr.Message != "" {
			return bqErr.Message
		}
		return bqErr.Reason
	}
	return err.Error()
}

// checkStatus turns a terminal job status into an error unless the job is
// done and reported no errors at all.
func checkStatus(jobID string, kind JobKind, status *bigquery.JobStatus) (*Job, error) {
	job := &Job{ID: jobID, Kind: kind, State: "unknown"}
	if status == nil {
		return job, &JobError{JobID: jobID, Kind: kind, State: job.State}
	}

	job.State = stateName(status.State)
	job.Errors = errorMessages(status.Errors)
	if err := status.Err(); err != nil {
		msg := describe(err)
		if !contains(job.Errors, msg) {
			job.Errors = append([]string{msg}, job.Errors...)
		}
	}

	if status.State != bigquery.Done || len(job.Errors) > 0 {
		return job, &JobError{JobID: jobID, Kind: kind, State: job.State, Errors: job.Errors}
	}
	return job, nil
}

func stateName(s bigquery.State) string {
	switch s {
	case bigquery.Pending:
		return "pending"
	case bigquery.Running:
		return "running"
	case bigquery.Done:
		return "done"
	default:
		return "unknown"
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
