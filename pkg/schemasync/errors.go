package schemasync

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// TableStatus is the outcome of synchronising one table.
type TableStatus int

const (
	StatusUnchanged TableStatus = iota
	StatusCreated
	StatusAltered
	StatusFailed
	StatusSkipped
)

func (s TableStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusAltered:
		return "altered"
	case StatusUnchanged:
		return "unchanged"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("TableStatus(%d)", int(s))
	}
}

// TableResult is the outcome for one table. Err is set for failed tables and
// names the failed dependency for skipped ones.
type TableResult struct {
	Table  string
	Status TableStatus
	Err    error
}

// SyncError reports a synchronisation run in which at least one table failed.
// The individual table errors are reachable with errors.Is and errors.As.
type SyncError struct {
	Results []TableResult
	err     error
}

func newSyncError(results []TableResult) *SyncError {
	var err error
	for _, r := range results {
		if r.Status == StatusFailed {
			err = multierr.Append(err, fmt.Errorf("table %s: %w", r.Table, r.Err))
		}
	}
	if err == nil {
		return nil
	}
	return &SyncError{Results: results, err: err}
}

func (e *SyncError) Error() string {
	failed := e.Failed()
	names := make([]string, len(failed))
	for i, r := range failed {
		names[i] = r.Table
	}
	return fmt.Sprintf("schema sync failed for %s: %v", strings.Join(names, ", "), e.err)
}

// Unwrap returns the individual table errors.
func (e *SyncError) Unwrap() []error {
	return multierr.Errors(e.err)
}

// Failed returns the results of the failed tables.
func (e *SyncError) Failed() []TableResult {
	var out []TableResult
	for _, r := range e.Results {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// CyclicDependencyError is returned when foreign keys form a cycle, before
// any DDL runs.
type CyclicDependencyError struct {
	Tables []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic foreign key dependency between tables %s", strings.Join(e.Tables, ", "))
}
