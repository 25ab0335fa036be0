package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jacokyle01/analysis-replay/models"
)

type fakeAnalyzer struct {
	err    error
	calls  atomic.Int32
	closed atomic.Bool
}

func (f *fakeAnalyzer) AnalyzePosition(fen string, depth, timeMS int) (*models.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Result{BestMove: "e2e4", Eval: 20, Depth: depth, Time: timeMS}, nil
}

func (f *fakeAnalyzer) Close() { f.closed.Store(true) }

// jobServer hands out its jobs once each, then reports no work. Results
// are collected in order.
type jobServer struct {
	mu          sync.Mutex
	jobs        []models.PositionJob
	results     []models.Result
	resultCodes []int // status codes for successive POST /result calls
	posts       int
}

func (s *jobServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.URL.Path {
	case "/job":
		if len(s.jobs) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		job := s.jobs[0]
		s.jobs = s.jobs[1:]
		json.NewEncoder(w).Encode(job)
	case "/result":
		s.posts++
		if len(s.resultCodes) > 0 {
			code := s.resultCodes[0]
			s.resultCodes = s.resultCodes[1:]
			if code != http.StatusOK {
				w.WriteHeader(code)
				return
			}
		}
		var res models.Result
		if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		s.results = append(s.results, res)
	default:
		http.NotFound(w, r)
	}
}

func (s *jobServer) snapshot() ([]models.Result, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Result(nil), s.results...), s.posts
}

var startJob = models.PositionJob{
	ID:     "job-1",
	TaskID: "task-1",
	FEN:    "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
	Depth:  10,
	TimeMS: 100,
}

func TestProcessJob(t *testing.T) {
	js := &jobServer{jobs: []models.PositionJob{startJob}}
	srv := httptest.NewServer(js)
	defer srv.Close()

	c := NewClientWithAnalyzer(srv.URL, &fakeAnalyzer{}, time.Millisecond)
	worked, err := c.processJob(context.Background())
	if err != nil || !worked {
		t.Fatalf("processJob = %v, %v; want a processed job", worked, err)
	}
	results, _ := js.snapshot()
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	got := results[0]
	if got.JobID != "job-1" || got.BestMove != "e2e4" || got.Depth != 10 || got.Time != 100 {
		t.Fatalf("unexpected result %+v", got)
	}

	worked, err = c.processJob(context.Background())
	if err != nil || worked {
		t.Fatalf("processJob on an empty queue = %v, %v", worked, err)
	}
}

func TestProcessJobReportsEngineErrors(t *testing.T) {
	js := &jobServer{jobs: []models.PositionJob{startJob}}
	srv := httptest.NewServer(js)
	defer srv.Close()

	c := NewClientWithAnalyzer(srv.URL, &fakeAnalyzer{err: errors.New("engine output closed")}, time.Millisecond)
	if _, err := c.processJob(context.Background()); err != nil {
		t.Fatalf("processJob: %v", err)
	}
	results, _ := js.snapshot()
	if len(results) != 1 || results[0].JobID != "job-1" || results[0].Error != "engine output closed" {
		t.Fatalf("expected an error result, got %+v", results)
	}
}

func TestSubmitResultRetriesServerErrors(t *testing.T) {
	js := &jobServer{resultCodes: []int{http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusOK}}
	srv := httptest.NewServer(js)
	defer srv.Close()

	c := NewClientWithAnalyzer(srv.URL, &fakeAnalyzer{}, time.Millisecond)
	if err := c.submitResult(context.Background(), &models.Result{JobID: "job-1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	results, posts := js.snapshot()
	if posts != 3 || len(results) != 1 {
		t.Fatalf("expected success on the third post, got %d posts and %d results", posts, len(results))
	}
}

func TestSubmitResultGivesUpOnClientErrors(t *testing.T) {
	js := &jobServer{resultCodes: []int{http.StatusBadRequest}}
	srv := httptest.NewServer(js)
	defer srv.Close()

	c := NewClientWithAnalyzer(srv.URL, &fakeAnalyzer{}, time.Millisecond)
	if err := c.submitResult(context.Background(), &models.Result{JobID: "job-1"}); err == nil {
		t.Fatal("expected an error")
	}
	if _, posts := js.snapshot(); posts != 1 {
		t.Fatalf("expected a single post, got %d", posts)
	}
}

func TestWorkLoopStopsWithContext(t *testing.T) {
	js := &jobServer{jobs: []models.PositionJob{startJob, {ID: "job-2", FEN: startJob.FEN, Depth: 5, TimeMS: 10}}}
	srv := httptest.NewServer(js)
	defer srv.Close()

	a := &fakeAnalyzer{}
	c := NewClientWithAnalyzer(srv.URL, a, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.WorkLoop(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		if results, _ := js.snapshot(); len(results) == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker did not process both jobs")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("WorkLoop did not return after cancel")
	}

	c.Close()
	if !a.closed.Load() || a.calls.Load() != 2 {
		t.Fatalf("expected 2 analyses and a closed engine, got %d", a.calls.Load())
	}
}
