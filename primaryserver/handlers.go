package primaryserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jacokyle01/analysis-replay/models"
)

// HTTP handlers
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	job, ok := s.GetJob(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleSubmitResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var result models.Result
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if result.JobID == "" {
		http.Error(w, "Missing job_id", http.StatusBadRequest)
		return
	}

	s.SubmitResult(result)
	w.WriteHeader(http.StatusOK)
}

// handleAnalyzePosition queues a single FEN.
func (s *Server) handleAnalyzePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var job models.PositionJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(job.FEN) == "" {
		http.Error(w, "Missing fen", http.StatusBadRequest)
		return
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Depth == 0 {
		job.Depth = s.opts.Depth
	}
	if job.TimeMS == 0 {
		job.TimeMS = s.opts.MoveTimeMS
	}

	if !s.AddJob(job) {
		http.Error(w, "Job queue full", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"job_id": job.ID})
}

// handleAnalyze accepts a whole game and fans it out into position jobs.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Pgn string `json:"pgn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	fens, plies, err := expandGame(req.Pgn)
	if err != nil {
		http.Error(w, "invalid PGN: "+err.Error(), http.StatusBadRequest)
		return
	}

	task := &models.Task{
		ID:        uuid.NewString(),
		FENs:      fens,
		Plies:     plies,
		Results:   make(map[string]models.Result, len(fens)),
		Total:     len(fens),
		CreatedAt: time.Now().UTC(),
	}
	jobs := make([]models.PositionJob, 0, len(fens))
	for i, fen := range fens {
		job := models.PositionJob{
			ID:     uuid.NewString(),
			TaskID: task.ID,
			Ply:    i,
			FEN:    fen,
			Depth:  s.opts.Depth,
			TimeMS: s.opts.MoveTimeMS,
		}
		task.JobIDs = append(task.JobIDs, job.ID)
		jobs = append(jobs, job)
	}

	if !s.addTaskJobs(task, jobs) {
		http.Error(w, "Job queue full", http.StatusServiceUnavailable)
		return
	}
	s.metrics.tasksSubmitted.Inc()

	writeJSON(w, http.StatusOK, map[string]string{"task_id": task.ID})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	taskID := strings.TrimPrefix(r.URL.Path, "/task_status/")
	if taskID == "" || strings.Contains(taskID, "/") {
		http.Error(w, "Missing task id", http.StatusBadRequest)
		return
	}

	resp, ok := s.TaskStatus(taskID)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown task %q", taskID), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		http.Error(w, "Missing job_id parameter", http.StatusBadRequest)
		return
	}

	result, exists := s.GetResult(jobID)
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleViewQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	pendingJobs := make([]models.PositionJob, 0, len(s.jobMap))
	for _, job := range s.jobMap {
		pendingJobs = append(pendingJobs, job)
	}
	status := map[string]interface{}{
		"queue_length": len(s.jobs),
		"pending_jobs": pendingJobs,
		"tasks":        len(s.tasks),
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
