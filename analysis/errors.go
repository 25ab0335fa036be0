package analysis

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCancelled is returned by Handle.Wait for a job that was cancelled,
	// either explicitly or by a newer submission, and by Submit when Cancel
	// was called while the backend call was in flight.
	ErrCancelled = errors.New("analysis job cancelled")
	// ErrTimeout is returned by Handle.Wait for a job that exceeded the
	// configured wait policy.
	ErrTimeout = errors.New("analysis job timed out")
)

// TransportError is a failure to reach the analysis backend or an
// unusable reply from it. It says nothing about the job itself.
type TransportError struct {
	Op         string // "submit" or "status"
	StatusCode int    // HTTP status, 0 if no response
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis %s: backend returned %d: %v", e.Op, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("analysis %s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// Retryable reports whether repeating the request may succeed. Client
// errors (4xx) are not retryable.
func (e *TransportError) Retryable() bool {
	return e.StatusCode < http.StatusBadRequest || e.StatusCode >= http.StatusInternalServerError
}

// JobFailedError means the backend finished the job unsuccessfully.
type JobFailedError struct {
	JobID  string
	Status string // backend status, e.g. FAILURE
	Reason string
}

func (e *JobFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("analysis job %s failed (%s)", e.JobID, e.Status)
	}
	return fmt.Sprintf("analysis job %s failed (%s): %s", e.JobID, e.Status, e.Reason)
}
