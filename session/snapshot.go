package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jacokyle01/analysis-replay/models"
)

// KV is the storage a Snapshot is loaded from and saved to. *Store
// implements it.
type KV interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Put(ctx context.Context, sessionID, key, value string) error
	Delete(ctx context.Context, sessionID, key string) error
	// Replace applies puts and deletes atomically.
	Replace(ctx context.Context, sessionID string, puts map[string]string, drop []string) error
}

var _ KV = (*Store)(nil)

// Snapshot is the read-mostly state shared between views. Zero fields mean
// the key was absent.
type Snapshot struct {
	Record      string
	Analysis    models.AnalysisSet // nil when no analysis has been stored
	RawResponse json.RawMessage
}

// HasAnalysis reports whether an analysis result was stored.
func (s Snapshot) HasAnalysis() bool { return s.Analysis != nil }

// Load reads a session. Missing keys leave the matching field zero; a
// stored value that cannot be decoded is an error.
func Load(ctx context.Context, kv KV, sessionID string) (Snapshot, error) {
	var snap Snapshot

	record, ok, err := kv.Get(ctx, sessionID, KeyRecord)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load session record: %w", err)
	}
	if ok {
		snap.Record = record
	}

	raw, ok, err := kv.Get(ctx, sessionID, KeyAnalysisResult)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load session analysis: %w", err)
	}
	if ok {
		set := models.AnalysisSet{}
		if err := json.Unmarshal([]byte(raw), &set); err != nil {
			return Snapshot{}, fmt.Errorf("decode session analysis: %w", err)
		}
		snap.Analysis = set
	}

	resp, ok, err := kv.Get(ctx, sessionID, KeyRawResponse)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load session response: %w", err)
	}
	if ok {
		snap.RawResponse = json.RawMessage(resp)
	}
	return snap, nil
}

// SaveRecord stores a newly submitted record and drops the analysis of the
// previous one, which no longer lines up with it. If any part fails the
// session is left as it was.
func SaveRecord(ctx context.Context, kv KV, sessionID, record string) error {
	err := kv.Replace(ctx, sessionID,
		map[string]string{KeyRecord: record},
		[]string{KeyAnalysisResult, KeyRawResponse},
	)
	if err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	return nil
}

// SaveAnalysis stores a finished analysis and the reply it came with.
func SaveAnalysis(ctx context.Context, kv KV, sessionID string, set models.AnalysisSet, raw json.RawMessage) error {
	if set == nil {
		set = models.AnalysisSet{}
	}
	b, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode session analysis: %w", err)
	}
	puts := map[string]string{KeyAnalysisResult: string(b)}
	if len(raw) > 0 {
		puts[KeyRawResponse] = string(raw)
	}
	if err := kv.Replace(ctx, sessionID, puts, nil); err != nil {
		return fmt.Errorf("save session analysis: %w", err)
	}
	return nil
}
