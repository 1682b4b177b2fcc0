package api

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// handleStartJob kicks off a batch sweep. Only one sweep runs at a time;
// the job record is created synchronously so the caller gets an id to
// poll, then the sweep itself runs detached from the request.
func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	if !s.sweeping.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a verification sweep is already running")
		return
	}

	job, err := s.runner.Begin(r.Context())
	if err != nil {
		s.sweeping.Store(false)
		log.Error().Err(err).Msg("start sweep failed")
		writeError(w, http.StatusInternalServerError, "could not start sweep")
		return
	}

	// Detach from the request but not from the process: shutdown
	// cancels the sweep and the runner finalizes the job as failed.
	sweepCtx := s.lifecycle
	if sweepCtx == nil {
		sweepCtx = context.Background()
	}
	go func() {
		defer s.sweeping.Store(false)
		if err := s.runner.Execute(sweepCtx, job); err != nil {
			log.Error().Str("job_id", job.ID).Err(err).Msg("sweep aborted")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
		"total":  job.TotalLicenses,
	})
}

// handleGetJob reports a job's durable progress record.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.db.GetJob(r.Context(), id)
	if err != nil {
		log.Error().Str("job_id", id).Err(err).Msg("load job failed")
		writeError(w, http.StatusInternalServerError, "could not load job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":             job.ID,
		"status":         job.Status,
		"total_licenses": job.TotalLicenses,
		"processed":      job.Processed,
		"auto_verified":  job.AutoVerified,
		"tasks_created":  job.TasksCreated,
		"error_count":    job.ErrorCount,
		"errors":         job.Errors,
		"started_at":     job.StartedAt,
		"completed_at":   job.CompletedAt,
	})
}
