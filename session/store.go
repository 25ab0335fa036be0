// Package session persists the state a user carries between the submit
// and replay views: the raw record, the analysis result and the last
// status reply.
//
// SQLite in WAL mode backs the store so the analyze and replay commands,
// run as separate processes, see the same session.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Keys stored per session.
const (
	KeyRecord         = "record"
	KeyAnalysisResult = "analysisResult"
	KeyRawResponse    = "rawResponse"
)

const (
	upsertSQL = `INSERT INTO session_state (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	deleteSQL = `DELETE FROM session_state WHERE session_id = ? AND key = ?`
)

// Store is a SQLite key-value store scoped by session id.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session db: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS session_state (
		session_id TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (session_id, key)
	);`)
	return err
}

// Get returns the value stored under key. A missing key is reported with
// ok == false and no error.
func (s *Store) Get(ctx context.Context, sessionID, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM session_state WHERE session_id = ? AND key = ?`,
		sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", sessionID, key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, sessionID, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryOnContention(ctx, func() error {
		_, err := s.db.ExecContext(ctx, upsertSQL, sessionID, key, value, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", sessionID, key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, sessionID, key string) error {
	err := retryOnContention(ctx, func() error {
		_, err := s.db.ExecContext(ctx, deleteSQL, sessionID, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", sessionID, key, err)
	}
	return nil
}

// Replace stores puts and removes the keys in drop in one transaction.
// Either every change lands or none does.
func (s *Store) Replace(ctx context.Context, sessionID string, puts map[string]string, drop []string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryOnContention(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for key, value := range puts {
			if _, err := tx.ExecContext(ctx, upsertSQL, sessionID, key, value, now); err != nil {
				return err
			}
		}
		for _, key := range drop {
			if _, err := tx.ExecContext(ctx, deleteSQL, sessionID, key); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", sessionID, err)
	}
	return nil
}

// Clear removes every key of a session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return retryOnContention(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM session_state WHERE session_id = ?`, sessionID)
		return err
	})
}
