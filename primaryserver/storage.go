package primaryserver

import (
	"log"

	"github.com/jacokyle01/analysis-replay/models"
)

// SubmitResult stores a completed analysis result
func (s *Server) SubmitResult(result models.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := "ok"
	if result.Error != "" {
		outcome = "error"
	}
	s.metrics.resultsReceived.WithLabelValues(outcome).Inc()

	if _, pending := s.jobMap[result.JobID]; !pending {
		if _, seen := s.results[result.JobID]; seen {
			log.Printf("Ignoring duplicate result for job %s", result.JobID)
			return
		}
	}
	delete(s.jobMap, result.JobID)
	s.results[result.JobID] = result

	if task, ok := s.tasks[s.jobTask[result.JobID]]; ok {
		task.Results[result.JobID] = result
		task.Completed++
		if result.Error != "" && task.Failed == "" {
			task.Failed = result.Error
		}
		log.Printf("[Task %s] %d/%d jobs complete", task.ID, task.Completed, task.Total)
	}

	log.Printf("Received result for job %s: %s (eval: %d)",
		result.JobID, result.BestMove, result.Eval)
}

// GetResult retrieves a result by job ID
func (s *Server) GetResult(jobID string) (models.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, exists := s.results[jobID]
	return result, exists
}

// TaskStatus reports the state of a game analysis task.
func (s *Server) TaskStatus(taskID string) (models.StatusResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return models.StatusResponse{}, false
	}
	resp := models.StatusResponse{
		TaskID:   task.ID,
		Progress: models.Progress{Completed: task.Completed, Total: task.Total},
	}
	switch {
	case task.Failed != "":
		resp.Status = models.TaskFailure
		resp.Error = task.Failed
	case task.Completed == task.Total:
		resp.Status = models.TaskSuccess
		resp.Result = &models.AnalysisResult{Analysis: buildAnalysis(task)}
	case task.Started || task.Completed > 0:
		resp.Status = models.TaskStarted
	default:
		resp.Status = models.TaskPending
	}
	return resp, true
}
