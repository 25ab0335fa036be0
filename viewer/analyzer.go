// Package viewer holds the two consumer views of the system: Analyzer
// submits a record and waits for its analysis, Replay steps through a
// loaded game alongside that analysis.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jacokyle01/analysis-replay/analysis"
	"github.com/jacokyle01/analysis-replay/history"
	"github.com/jacokyle01/analysis-replay/rules"
	"github.com/jacokyle01/analysis-replay/session"
)

// Analyzer is the submission view.
type Analyzer struct {
	engine    rules.Engine
	kv        session.KV
	sessionID string
	orch      *analysis.Orchestrator

	submitting atomic.Bool
	current    atomic.Pointer[analysis.Handle]
}

// NewAnalyzer wires the submission view.
func NewAnalyzer(engine rules.Engine, kv session.KV, sessionID string, orch *analysis.Orchestrator) *Analyzer {
	return &Analyzer{engine: engine, kv: kv, sessionID: sessionID, orch: orch}
}

// InFlight reports whether a submission is being sent or its job has not
// finished yet.
func (a *Analyzer) InFlight() bool {
	if a.submitting.Load() {
		return true
	}
	h := a.current.Load()
	if h == nil {
		return false
	}
	select {
	case <-h.Done():
		return false
	default:
		return true
	}
}

// Submit checks that record parses, sends it for analysis and stores it as
// the session's record. A record that does not parse is never sent.
func (a *Analyzer) Submit(ctx context.Context, record string) (*analysis.Handle, error) {
	if _, err := history.Build(a.engine, record); err != nil {
		return nil, err
	}

	a.submitting.Store(true)
	defer a.submitting.Store(false)
	h, err := a.orch.Submit(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("submit for analysis: %w", err)
	}
	a.current.Store(h)
	if err := session.SaveRecord(ctx, a.kv, a.sessionID, record); err != nil {
		h.Cancel()
		return nil, err
	}
	return h, nil
}

// Run submits record, waits for the job to finish and saves its result to
// the session. If ctx ends first the job is cancelled.
func (a *Analyzer) Run(ctx context.Context, record string) (analysis.Job, error) {
	h, err := a.Submit(ctx, record)
	if err != nil {
		return analysis.Job{}, err
	}

	job, err := h.Wait(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		h.Cancel()
		return h.Job(), err
	}
	if err != nil {
		return job, err
	}

	// The wait context may be close to its end; persisting the result
	// should not be cut short by it.
	if err := session.SaveAnalysis(context.WithoutCancel(ctx), a.kv, a.sessionID, job.Result, job.Raw); err != nil {
		return job, err
	}
	return job, nil
}
