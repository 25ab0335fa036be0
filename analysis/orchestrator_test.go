package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jacokyle01/analysis-replay/models"
)

type statusFunc func(ctx context.Context, id string, call int) (Report, error)

// fakeBackend hands out ids job-1, job-2, ... and answers status requests
// with a scripted function.
type fakeBackend struct {
	mu        sync.Mutex
	submits   int
	submitErr error
	calls     map[string]int
	status    statusFunc
}

func newFakeBackend(status statusFunc) *fakeBackend {
	return &fakeBackend{calls: make(map[string]int), status: status}
}

func (f *fakeBackend) Submit(ctx context.Context, record string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submits++
	return fmt.Sprintf("job-%d", f.submits), nil
}

func (f *fakeBackend) Status(ctx context.Context, id string) (Report, error) {
	f.mu.Lock()
	f.calls[id]++
	call := f.calls[id]
	status := f.status
	f.mu.Unlock()
	return status(ctx, id, call)
}

func (f *fakeBackend) failSubmits(err error) {
	f.mu.Lock()
	f.submitErr = err
	f.mu.Unlock()
}

func alwaysPending(context.Context, string, int) (Report, error) {
	return Report{Status: models.TaskPending}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// statuses lists the transitions seen for a job.
func (r *recorder) statuses(id string) []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Status
	for _, ev := range r.events {
		if ev.Kind == EventTransition && ev.Job.ID == id {
			out = append(out, ev.Job.Status)
		}
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func newTestOrchestrator(t *testing.T, b Backend, cfg Config) (*Orchestrator, *recorder) {
	t.Helper()
	rec := &recorder{}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	cfg.Notify = rec.notify
	o := New(b, cfg)
	t.Cleanup(o.Close)
	return o, rec
}

func waitJob(t *testing.T, h *Handle) (Job, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := h.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("job %s did not finish, last status %s", h.ID(), job.Status)
	}
	return job, err
}

func equalStatuses(got, want []Status) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

var twoMoves = models.AnalysisSet{
	{MoveIndex: 0, EvaluationCentipawns: intp(20)},
	{MoveIndex: 1, EvaluationCentipawns: intp(15), Commentary: strp("Fine.")},
}

func TestSubmitSucceeds(t *testing.T) {
	b := newFakeBackend(func(_ context.Context, _ string, call int) (Report, error) {
		switch call {
		case 1:
			return Report{Status: models.TaskPending}, nil
		case 2:
			return Report{Status: models.TaskStarted}, nil
		case 3:
			return Report{Status: models.TaskStarted}, nil
		}
		return Report{Status: models.TaskSuccess, Result: twoMoves, Raw: []byte(`{"status":"SUCCESS"}`)}, nil
	})
	o, rec := newTestOrchestrator(t, b, Config{})

	h, err := o.Submit(context.Background(), "1. e4 e5 *")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if h.ID() != "job-1" {
		t.Fatalf("expected job-1, got %s", h.ID())
	}

	job, err := waitJob(t, h)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if job.Status != StatusSucceeded || len(job.Result) != 2 || string(job.Raw) != `{"status":"SUCCESS"}` {
		t.Fatalf("unexpected job %+v", job)
	}
	want := []Status{StatusPending, StatusRunning, StatusSucceeded}
	if got := rec.statuses("job-1"); !equalStatuses(got, want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	cur, ok := o.Current()
	if !ok || cur.Status != StatusSucceeded {
		t.Fatalf("expected current job to be finished, got %+v", cur)
	}
}

func TestJobFailure(t *testing.T) {
	b := newFakeBackend(func(context.Context, string, int) (Report, error) {
		return Report{Status: models.TaskFailure, Error: "engine crashed"}, nil
	})
	o, _ := newTestOrchestrator(t, b, Config{})

	h, err := o.Submit(context.Background(), "1. e4 *")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	job, err := waitJob(t, h)
	var fe *JobFailedError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *JobFailedError, got %v", err)
	}
	if fe.Reason != "engine crashed" || fe.JobID != "job-1" || job.Status != StatusFailed {
		t.Fatalf("unexpected failure %+v for job %+v", fe, job)
	}
}

func TestRevokedIsFailure(t *testing.T) {
	b := newFakeBackend(func(context.Context, string, int) (Report, error) {
		return Report{Status: models.TaskRevoked}, nil
	})
	o, _ := newTestOrchestrator(t, b, Config{})

	h, err := o.Submit(context.Background(), "1. e4 *")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job, _ := waitJob(t, h); job.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", job.Status)
	}
}

func TestPollErrorsKeepPolling(t *testing.T) {
	b := newFakeBackend(func(_ context.Context, _ string, call int) (Report, error) {
		if call <= 2 {
			return Report{}, errors.New("connection refused")
		}
		return Report{Status: models.TaskSuccess, Result: twoMoves}, nil
	})
	o, rec := newTestOrchestrator(t, b, Config{MaxPollErrors: 3})

	h, err := o.Submit(context.Background(), "1. e4 *")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := waitJob(t, h); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if n := rec.count(EventPollError); n != 2 {
		t.Fatalf("expected 2 poll errors, got %d", n)
	}
	want := []Status{StatusPending, StatusSucceeded}
	if got := rec.statuses("job-1"); !equalStatuses(got, want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
}

func TestMaxPollErrorsTimesOut(t *testing.T) {
	b := newFakeBackend(func(context.Context, string, int) (Report, error) {
		return Report{}, errors.New("connection refused")
	})
	o, rec := newTestOrchestrator(t, b, Config{MaxPollErrors: 3})

	h, err := o.Submit(context.Background(), "1. e4 *")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	job, err := waitJob(t, h)
	if !errors.Is(err, ErrTimeout) || job.Status != StatusTimeout {
		t.Fatalf("expected timeout, got %s: %v", job.Status, err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "status" {
		t.Fatalf("expected the last transport error to be kept, got %v", err)
	}
	if n := rec.count(EventPollError); n != 2 {
		t.Fatalf("expected 2 poll errors before giving up, got %d", n)
	}
}

func TestMaxWaitTimesOut(t *testing.T) {
	b := newFakeBackend(alwaysPending)
	o, _ := newTestOrchestrator(t, b, Config{Timeout: MaxWait(30 * time.Millisecond)})

	h, err := o.Submit(context.Background(), "1. e4 *")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	job, err := waitJob(t, h)
	if !errors.Is(err, ErrTimeout) || job.Status != StatusTimeout {
		t.Fatalf("expected timeout, got %s: %v", job.Status, err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	b := newFakeBackend(alwaysPending)
	o, rec := newTestOrchestrator(t, b, Config{})

	o.Cancel() // nothing submitted yet

	h, err := o.Submit(context.Background(), "1. e4 *")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	o.Cancel()
	o.Cancel()
	h.Cancel()

	job, err := waitJob(t, h)
	if !errors.Is(err, ErrCancelled) || job.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s: %v", job.Status, err)
	}
	want := []Status{StatusPending, StatusCancelled}
	if got := rec.statuses("job-1"); !equalStatuses(got, want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
}

func TestResubmitCancelsPrevious(t *testing.T) {
	b := newFakeBackend(func(_ context.Context, id string, call int) (Report, error) {
		if id == "job-2" && call >= 2 {
			return Report{Status: models.TaskSuccess, Result: twoMoves}, nil
		}
		return Report{Status: models.TaskPending}, nil
	})
	o, rec := newTestOrchestrator(t, b, Config{})

	first, err := o.Submit(context.Background(), "1. e4 *")
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := o.Submit(context.Background(), "1. d4 *")
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if job, err := waitJob(t, first); !errors.Is(err, ErrCancelled) || job.Status != StatusCancelled {
		t.Fatalf("expected first job cancelled, got %s: %v", job.Status, err)
	}
	job, err := waitJob(t, second)
	if err != nil || job.Generation <= first.Job().Generation {
		t.Fatalf("expected second job to succeed with a newer generation, got %+v: %v", job, err)
	}

	// The cancellation of job-1 is reported before job-2 is announced.
	rec.mu.Lock()
	ev := rec.events[1]
	rec.mu.Unlock()
	if ev.Job.ID != "job-1" || ev.Job.Status != StatusCancelled {
		t.Fatalf("expected job-1 cancellation as the second event, got %+v", ev.Job)
	}
	if cur, _ := o.Current(); cur.ID != "job-2" {
		t.Fatalf("expected job-2 current, got %s", cur.ID)
	}
}

func TestLateReplyAfterCancelIsDropped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	b := newFakeBackend(func(context.Context, string, int) (Report, error) {
		once.Do(func() { close(entered) })
		<-release
		return Report{Status: models.TaskSuccess, Result: twoMoves}, nil
	})
	o, rec := newTestOrchestrator(t, b, Config{})

	h, err := o.Submit(context.Background(), "1. e4 *")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-entered
	h.Cancel()
	close(release)

	// Give the poller time to see the late reply.
	time.Sleep(50 * time.Millisecond)

	job := h.Job()
	if job.Status != StatusCancelled || job.Result != nil {
		t.Fatalf("late reply changed a cancelled job: %+v", job)
	}
	want := []Status{StatusPending, StatusCancelled}
	if got := rec.statuses("job-1"); !equalStatuses(got, want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
}

// heldSubmit blocks Submit until release is closed.
type heldSubmit struct {
	*fakeBackend
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (h *heldSubmit) Submit(ctx context.Context, record string) (string, error) {
	h.once.Do(func() { close(h.entered) })
	<-h.release
	return h.fakeBackend.Submit(ctx, record)
}

func TestCancelDuringSubmitDropsJob(t *testing.T) {
	b := &heldSubmit{
		fakeBackend: newFakeBackend(func(context.Context, string, int) (Report, error) {
			return Report{Status: models.TaskSuccess, Result: twoMoves}, nil
		}),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	o, rec := newTestOrchestrator(t, b, Config{})

	type result struct {
		h   *Handle
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := o.Submit(context.Background(), "1. e4 *")
		done <- result{h, err}
	}()

	<-b.entered
	o.Cancel()
	close(b.release)

	res := <-done
	if !errors.Is(res.err, ErrCancelled) || res.h != nil {
		t.Fatalf("expected ErrCancelled and no handle, got %v, %v", res.h, res.err)
	}
	if _, ok := o.Current(); ok {
		t.Fatal("a cancelled submission was installed")
	}
	time.Sleep(30 * time.Millisecond)
	if got := rec.statuses("job-1"); len(got) != 0 {
		t.Fatalf("expected no transitions, got %v", got)
	}

	// The next submission is unaffected.
	h, err := o.Submit(context.Background(), "1. d4 *")
	if err != nil {
		t.Fatalf("submit after cancel: %v", err)
	}
	if job, err := h.Wait(context.Background()); err != nil || job.Status != StatusSucceeded {
		t.Fatalf("expected success, got %+v, %v", job, err)
	}
}

func TestLateReplyAfterResubmitIsDropped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := newFakeBackend(func(_ context.Context, id string, call int) (Report, error) {
		if id == "job-2" {
			return Report{Status: models.TaskSuccess, Result: twoMoves}, nil
		}
		if call == 1 {
			return Report{Status: models.TaskStarted}, nil
		}
		if call == 2 {
			close(entered)
			<-release
			return Report{Status: models.TaskSuccess, Result: twoMoves}, nil
		}
		return Report{Status: models.TaskStarted}, nil
	})
	o, rec := newTestOrchestrator(t, b, Config{})

	first, err := o.Submit(context.Background(), "1. e4 *")
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	<-entered
	if first.Job().Status != StatusRunning {
		t.Fatalf("expected the first job running, got %s", first.Job().Status)
	}

	second, err := o.Submit(context.Background(), "1. d4 *")
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if _, err := waitJob(t, second); err != nil {
		t.Fatalf("second job: %v", err)
	}

	// The first job's reply arrives after the second job has finished.
	close(release)
	time.Sleep(50 * time.Millisecond)

	want := []Status{StatusPending, StatusRunning, StatusCancelled}
	if got := rec.statuses("job-1"); !equalStatuses(got, want) {
		t.Fatalf("job-1 transitions = %v, want %v", got, want)
	}
	cur, _ := o.Current()
	if cur.ID != "job-2" || cur.Status != StatusSucceeded {
		t.Fatalf("late reply disturbed the current job: %+v", cur)
	}
}

func TestFailedSubmitKeepsCurrentJob(t *testing.T) {
	b := newFakeBackend(alwaysPending)
	o, _ := newTestOrchestrator(t, b, Config{})

	h, err := o.Submit(context.Background(), "1. e4 *")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	b.failSubmits(errors.New("connection refused"))
	if _, err := o.Submit(context.Background(), "1. d4 *"); err == nil {
		t.Fatal("expected submit error")
	} else {
		var te *TransportError
		if !errors.As(err, &te) || te.Op != "submit" {
			t.Fatalf("expected a submit transport error, got %v", err)
		}
	}

	cur, ok := o.Current()
	if !ok || cur.ID != h.ID() || cur.Status.Terminal() {
		t.Fatalf("expected %s still live, got %+v", h.ID(), cur)
	}
	select {
	case <-h.Done():
		t.Fatal("previous job ended after a failed submit")
	default:
	}
}

func TestSubmitAfterClose(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeBackend(alwaysPending), Config{})
	o.Close()
	if _, err := o.Submit(context.Background(), "1. e4 *"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWaitContextEndsFirst(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeBackend(alwaysPending), Config{})
	h, err := o.Submit(context.Background(), "1. e4 *")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	job, err := h.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if job.Status.Terminal() {
		t.Fatalf("job should keep running, got %s", job.Status)
	}
}

func TestTimeoutPolicies(t *testing.T) {
	if (NoTimeout{}).Exceeded(time.Hour) {
		t.Fatal("NoTimeout gave up")
	}
	if MaxWait(0).Exceeded(time.Hour) {
		t.Fatal("zero MaxWait gave up")
	}
	if MaxWait(time.Second).Exceeded(time.Second) || !MaxWait(time.Second).Exceeded(2*time.Second) {
		t.Fatal("MaxWait boundary is wrong")
	}
}
