// Package analysis submits game records to the analysis backend and polls
// the resulting job until it finishes.
//
// An Orchestrator tracks at most one live job. Each submission gets a
// generation number; installing a new job cancels the previous one, and any
// status reply that arrives for a job that is no longer current is dropped.
// State changes are reported to Config.Notify in the order they happen.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jacokyle01/analysis-replay/models"
)

var tracer = otel.Tracer("github.com/jacokyle01/analysis-replay/analysis")

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("analysis orchestrator closed")
	// ErrSuperseded is returned by Submit when a newer submission was
	// installed while this one was still talking to the backend.
	ErrSuperseded = errors.New("analysis submission superseded")
)

// DefaultPollInterval is how often a live job is polled.
const DefaultPollInterval = 2 * time.Second

// Status is the consumer-side state of a job.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusTimeout   Status = "TIMEOUT"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// Job is a snapshot of one submission.
type Job struct {
	ID          string
	Generation  uint64
	Status      Status
	Result      models.AnalysisSet // only meaningful when Status is SUCCEEDED
	Raw         json.RawMessage    // last status reply
	Err         error              // why the job ended, for terminal non-success states
	SubmittedAt time.Time
}

// EventKind distinguishes state changes from poll failures.
type EventKind int

const (
	// EventTransition reports a status change.
	EventTransition EventKind = iota
	// EventPollError reports a failed status request. The job keeps its
	// status and polling goes on unless the failure ended the job.
	EventPollError
)

// Event is delivered to Config.Notify.
type Event struct {
	Kind EventKind
	Job  Job
	Err  error
}

// Config controls polling.
type Config struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Timeout defaults to NoTimeout.
	Timeout TimeoutPolicy
	// MaxPollErrors ends a job as TIMEOUT after that many consecutive
	// failed polls. Zero polls forever.
	MaxPollErrors int
	// Notify receives events in order. It runs while the orchestrator
	// serializes events and must not call Submit, Cancel or Close.
	Notify func(Event)
}

// Orchestrator owns the live analysis job of one consumer.
type Orchestrator struct {
	backend Backend
	cfg     Config

	emitMu sync.Mutex // held across a state change and its notification

	mu           sync.Mutex
	nextGen      uint64
	cancelledGen uint64 // submissions up to this generation were cancelled
	current      *job
	closed       bool
}

type job struct {
	state  Job
	cancel context.CancelFunc
	done   chan struct{}
}

// finish stops polling and releases waiters. Callers hold Orchestrator.mu.
func (j *job) finish() {
	j.cancel()
	select {
	case <-j.done:
	default:
		close(j.done)
	}
}

// New returns an idle orchestrator.
func New(backend Backend, cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout == nil {
		cfg.Timeout = NoTimeout{}
	}
	return &Orchestrator{backend: backend, cfg: cfg}
}

// Submit sends record to the backend and starts polling the new job. The
// previous job, if still live, is cancelled once the backend has accepted
// the new one. If the backend call fails the previous job is left running.
func (o *Orchestrator) Submit(ctx context.Context, record string) (*Handle, error) {
	ctx, span := tracer.Start(ctx, "analysis.submit")
	defer span.End()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	o.nextGen++
	gen := o.nextGen
	o.mu.Unlock()
	span.SetAttributes(attribute.Int64("analysis.generation", int64(gen)))

	id, err := o.backend.Submit(ctx, record)
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Op: "submit", Cause: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("analysis.job_id", id))

	o.emitMu.Lock()
	defer o.emitMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	if gen <= o.cancelledGen {
		o.mu.Unlock()
		log.Printf("analysis: dropping job %s, cancelled while submitting", id)
		return nil, ErrCancelled
	}
	if o.current != nil && o.current.state.Generation > gen {
		o.mu.Unlock()
		log.Printf("analysis: dropping job %s, generation %d superseded by %d", id, gen, o.current.state.Generation)
		return nil, ErrSuperseded
	}

	var events []Event
	if prev := o.current; prev != nil && !prev.state.Status.Terminal() {
		prev.state.Status = StatusCancelled
		prev.state.Err = ErrCancelled
		prev.finish()
		events = append(events, Event{Kind: EventTransition, Job: prev.state})
	}

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &job{
		state: Job{
			ID:          id,
			Generation:  gen,
			Status:      StatusPending,
			SubmittedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	o.current = j
	events = append(events, Event{Kind: EventTransition, Job: j.state})
	o.mu.Unlock()

	for _, ev := range events {
		o.notify(ev)
	}
	go o.poll(pollCtx, j)
	return &Handle{o: o, j: j}, nil
}

// Current returns the most recent job, live or finished.
func (o *Orchestrator) Current() (Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Job{}, false
	}
	return o.current.state, true
}

// Cancel stops the live job, and any submission still waiting on the
// backend is discarded once it returns. It is safe to call at any time and
// more than once.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	o.cancelledGen = o.nextGen
	j := o.current
	o.mu.Unlock()
	if j != nil {
		o.cancelJob(j)
	}
}

// Close cancels the live job and rejects further submissions.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.Cancel()
}

func (o *Orchestrator) cancelJob(j *job) {
	o.update(j, func(s *Job) (Event, bool) {
		s.Status = StatusCancelled
		s.Err = ErrCancelled
		return Event{Kind: EventTransition, Job: *s}, true
	})
}

// update applies fn to j's state if j is still the live job, then
// notifies. It reports whether j was live.
func (o *Orchestrator) update(j *job, fn func(*Job) (Event, bool)) bool {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()

	o.mu.Lock()
	if o.current != j || j.state.Status.Terminal() {
		o.mu.Unlock()
		return false
	}
	ev, changed := fn(&j.state)
	if changed {
		ev.Job = j.state
	}
	if j.state.Status.Terminal() {
		j.finish()
	}
	o.mu.Unlock()

	if changed {
		o.notify(ev)
	}
	return true
}

func (o *Orchestrator) notify(ev Event) {
	if o.cfg.Notify != nil {
		o.cfg.Notify(ev)
	}
}

// poll checks j on every tick until it finishes or is cancelled. Requests
// are issued one at a time, so replies are applied in request order.
func (o *Orchestrator) poll(ctx context.Context, j *job) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if o.cfg.Timeout.Exceeded(time.Since(j.state.SubmittedAt)) {
			o.update(j, func(s *Job) (Event, bool) {
				s.Status = StatusTimeout
				s.Err = ErrTimeout
				return Event{Kind: EventTransition}, true
			})
			return
		}

		rep, err := o.check(ctx, j.state.ID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			giveUp := o.cfg.MaxPollErrors > 0 && failures >= o.cfg.MaxPollErrors
			live := o.update(j, func(s *Job) (Event, bool) {
				if giveUp {
					s.Status = StatusTimeout
					s.Err = fmt.Errorf("%w after %d failed polls: %w", ErrTimeout, failures, err)
					return Event{Kind: EventTransition, Err: err}, true
				}
				return Event{Kind: EventPollError, Err: err}, true
			})
			if !live || giveUp {
				return
			}
			continue
		}
		failures = 0

		if !o.apply(j, rep) || rep.Status.Terminal() {
			return
		}
	}
}

func (o *Orchestrator) check(ctx context.Context, id string) (Report, error) {
	ctx, span := tracer.Start(ctx, "analysis.status", trace.WithAttributes(attribute.String("analysis.job_id", id)))
	defer span.End()

	rep, err := o.backend.Status(ctx, id)
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Op: "status", Cause: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "status failed")
		return Report{}, err
	}
	span.SetAttributes(attribute.String("analysis.status", string(rep.Status)))
	return rep, nil
}

// apply folds a status reply into j. It reports whether j was still live.
func (o *Orchestrator) apply(j *job, rep Report) bool {
	return o.update(j, func(s *Job) (Event, bool) {
		switch rep.Status {
		case models.TaskSuccess:
			s.Status = StatusSucceeded
			s.Result = rep.Result
			s.Raw = rep.Raw
		case models.TaskFailure, models.TaskRevoked:
			s.Status = StatusFailed
			s.Raw = rep.Raw
			s.Err = &JobFailedError{JobID: s.ID, Status: string(rep.Status), Reason: rep.Error}
		case models.TaskStarted:
			if s.Status == StatusRunning {
				return Event{}, false
			}
			s.Status = StatusRunning
		case models.TaskPending:
			return Event{}, false
		default:
			log.Printf("analysis: job %s reported unknown status %q", s.ID, rep.Status)
			return Event{}, false
		}
		return Event{Kind: EventTransition}, true
	})
}

// Handle refers to one submitted job.
type Handle struct {
	o *Orchestrator
	j *job
}

// ID returns the backend job id.
func (h *Handle) ID() string { return h.j.state.ID }

// Job returns the current snapshot of this job, even after it has been
// superseded.
func (h *Handle) Job() Job {
	h.o.mu.Lock()
	defer h.o.mu.Unlock()
	return h.j.state
}

// Cancel cancels this job if it is still live.
func (h *Handle) Cancel() { h.o.cancelJob(h.j) }

// Done is closed once the job reaches a terminal status.
func (h *Handle) Done() <-chan struct{} { return h.j.done }

// Wait blocks until the job finishes. It returns a nil error only for a
// successful job; otherwise the error is a *JobFailedError, ErrCancelled or
// ErrTimeout (possibly wrapped). If ctx ends first, the job keeps running.
func (h *Handle) Wait(ctx context.Context) (Job, error) {
	select {
	case <-h.j.done:
	case <-ctx.Done():
		return h.Job(), ctx.Err()
	}
	job := h.Job()
	if job.Status == StatusSucceeded {
		return job, nil
	}
	return job, job.Err
}
