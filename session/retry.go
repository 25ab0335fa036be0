package session

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxWriteTries bounds attempts for a write hitting SQLite contention.
const maxWriteTries = 4

// isTransientSQLiteErr reports errors that clear up on retry: lock
// conflicts (SQLITE_BUSY, SQLITE_LOCKED) and WAL short reads (code 522).
func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"IOERR_SHORT_READ",
		"database is locked",
		"database table is locked",
		"(5)",
		"(6)",
		"(522)",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func writeBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}

// retryOnContention runs fn, retrying transient SQLite errors with
// exponential backoff and jitter. Other errors return immediately.
func retryOnContention(ctx context.Context, fn func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err != nil && !isTransientSQLiteErr(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(writeBackOff()), backoff.WithMaxTries(maxWriteTries))
	return err
}
