package primaryserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacokyle01/analysis-replay/models"
)

// Options tunes a Server. Zero values take the defaults.
type Options struct {
	QueueSize  int           // pending position jobs, default 4096
	Depth      int           // default search depth, default 15
	MoveTimeMS int           // default time per position, default 1000
	JobWait    time.Duration // how long GET /job waits for work, default 5s
}

const (
	defaultQueueSize  = 4096
	defaultDepth      = 15
	defaultMoveTimeMS = 1000
	defaultJobWait    = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server manages the job queue and distributes work
type Server struct {
	jobs    chan models.PositionJob
	mu      sync.RWMutex
	jobMap  map[string]models.PositionJob // handed out or queued, no result yet
	results map[string]models.Result
	tasks   map[string]*models.Task
	jobTask map[string]string // position job id -> task id

	opts     Options
	registry *prometheus.Registry
	metrics  *metrics
}

// NewServer creates a new analysis server
func NewServer(opts Options) *Server {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Depth <= 0 {
		opts.Depth = defaultDepth
	}
	if opts.MoveTimeMS <= 0 {
		opts.MoveTimeMS = defaultMoveTimeMS
	}
	if opts.JobWait <= 0 {
		opts.JobWait = defaultJobWait
	}

	s := &Server{
		jobs:     make(chan models.PositionJob, opts.QueueSize),
		jobMap:   make(map[string]models.PositionJob),
		results:  make(map[string]models.Result),
		tasks:    make(map[string]*models.Task),
		jobTask:  make(map[string]string),
		opts:     opts,
		registry: prometheus.NewRegistry(),
	}
	s.metrics = newMetrics(s.registry, func() float64 { return float64(len(s.jobs)) })
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/job", s.handleGetJob)
	mux.HandleFunc("/result", s.handleSubmitResult)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/analyze_position", s.handleAnalyzePosition)
	mux.HandleFunc("/task_status/", s.handleTaskStatus)
	mux.HandleFunc("/get_result", s.handleGetResult)
	mux.HandleFunc("/queue", s.handleViewQueue)
	mux.Handle("/metrics", s.metricsHandler())
	return mux
}

// StartServer serves HTTP on addr until ctx is done.
func (s *Server) StartServer(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
