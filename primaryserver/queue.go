package primaryserver

import (
	"context"
	"log"
	"time"

	"github.com/jacokyle01/analysis-replay/models"
)

// AddJob adds a new analysis job to the queue. It reports false if the
// queue is full.
func (s *Server) AddJob(job models.PositionJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueueLocked(job)
}

func (s *Server) enqueueLocked(job models.PositionJob) bool {
	select {
	case s.jobs <- job:
		s.jobMap[job.ID] = job
		s.metrics.jobsQueued.Inc()
		return true
	default:
		s.metrics.jobsDropped.Inc()
		log.Printf("Job queue full, dropping job %s", job.ID)
		return false
	}
}

// addTaskJobs queues every job of a task or none of them.
func (s *Server) addTaskJobs(task *models.Task, jobs []models.PositionJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Only workers drain the channel, so free space cannot shrink while
	// the lock is held.
	if cap(s.jobs)-len(s.jobs) < len(jobs) {
		s.metrics.jobsDropped.Add(float64(len(jobs)))
		return false
	}
	s.tasks[task.ID] = task
	for _, job := range jobs {
		s.jobTask[job.ID] = task.ID
		s.enqueueLocked(job)
	}
	log.Printf("[Task %s] queued %d positions", task.ID, len(jobs))
	return true
}

// GetJob returns the next job for a worker, waiting up to the configured
// job wait.
func (s *Server) GetJob(ctx context.Context) (models.PositionJob, bool) {
	timer := time.NewTimer(s.opts.JobWait)
	defer timer.Stop()

	select {
	case job := <-s.jobs:
		s.markStarted(job)
		return job, true
	case <-timer.C:
		return models.PositionJob{}, false
	case <-ctx.Done():
		return models.PositionJob{}, false
	}
}

func (s *Server) markStarted(job models.PositionJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[s.jobTask[job.ID]]; ok {
		task.Started = true
	}
}
