package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chatmle/tinker-api/internal/metrics"
	"github.com/chatmle/tinker-api/internal/tinker"
)

// UnavailableDetail is returned with 503 when no backend client is configured.
const UnavailableDetail = "Tinker backend client not installed. " +
	"Enable it with TINKER_BACKEND_ENABLED=true and TINKER_BACKEND_BASE_URL."

func (s *Server) startTraining(w http.ResponseWriter, r *http.Request) {
	var body trainRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, s.logger, http.StatusUnprocessableEntity, "invalid JSON body: "+err.Error())
		return
	}
	req, err := body.toTrainRequest()
	if err != nil {
		writeError(w, s.logger, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var run tinker.Run
	ok := s.callBackend(w, r, "create_run", func(ctx context.Context, b tinker.Backend) error {
		var err error
		run, err = b.CreateRun(ctx, toRunRequest(req))
		return err
	})
	if !ok {
		return
	}

	// The backend is not asked for the initial status; new jobs are reported as pending.
	writeJSON(w, s.logger, http.StatusOK, TrainResponse{
		JobID:   run.ID,
		Status:  tinker.StatusPending,
		Message: "Training job started for model " + req.Model,
	})
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	var run tinker.Run
	ok := s.callBackend(w, r, "get_run", func(ctx context.Context, b tinker.Backend) error {
		var err error
		run, err = b.GetRun(ctx, jobID)
		return err
	})
	if !ok {
		return
	}
	writeJSON(w, s.logger, http.StatusOK, projectRun(run))
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, s.logger, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var runs []tinker.Run
	ok := s.callBackend(w, r, "list_runs", func(ctx context.Context, b tinker.Backend) error {
		var err error
		runs, err = b.ListRuns(ctx, limit)
		return err
	})
	if !ok {
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ListJobsResponse{Jobs: projectRuns(runs, limit)})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	ok := s.callBackend(w, r, "cancel_run", func(ctx context.Context, b tinker.Backend) error {
		return b.CancelRun(ctx, jobID)
	})
	if !ok {
		return
	}
	writeJSON(w, s.logger, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Job %s cancellation requested", jobID),
	})
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	var models []tinker.Model
	ok := s.callBackend(w, r, "list_models", func(ctx context.Context, b tinker.Backend) error {
		var err error
		models, err = b.ListModels(ctx)
		return err
	})
	if !ok {
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ListModelsResponse{Models: projectModels(models)})
}

func (s *Server) listCheckpoints(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, s.logger, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var checkpoints []tinker.Checkpoint
	ok := s.callBackend(w, r, "list_checkpoints", func(ctx context.Context, b tinker.Backend) error {
		var err error
		checkpoints, err = b.ListCheckpoints(ctx, jobID, limit)
		return err
	})
	if !ok {
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ListCheckpointsResponse{Checkpoints: projectCheckpoints(checkpoints, limit)})
}

func (s *Server) getCheckpoint(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	checkpointID := chi.URLParam(r, "checkpoint_id")

	var checkpoint tinker.Checkpoint
	ok := s.callBackend(w, r, "get_checkpoint", func(ctx context.Context, b tinker.Backend) error {
		var err error
		checkpoint, err = b.GetCheckpoint(ctx, jobID, checkpointID)
		return err
	})
	if !ok {
		return
	}
	writeJSON(w, s.logger, http.StatusOK, projectCheckpoint(checkpoint))
}

// testConnection reports whether the backend accepts the caller's key.
func (s *Server) testConnection(w http.ResponseWriter, r *http.Request) {
	var connected bool
	ok := s.callBackend(w, r, "ping", func(ctx context.Context, b tinker.Backend) error {
		var err error
		connected, err = b.Ping(ctx)
		return err
	})
	if !ok {
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ConnectionResponse{Connected: connected})
}

// callBackend builds a client from the request's key and runs fn with it.
// On failure it writes the 503 or 500 response and returns false.
func (s *Server) callBackend(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	fn func(ctx context.Context, b tinker.Backend) error,
) bool {
	start := time.Now()
	// Backend calls are not aborted when the caller disconnects.
	ctx := context.WithoutCancel(r.Context())

	err := func() error {
		backend, err := s.connector.Connect(r.Header.Get(KeyHeader))
		if err != nil {
			return err
		}
		return fn(ctx, backend)
	}()

	switch {
	case err == nil:
		metrics.ObserveBackendCall(operation, metrics.OutcomeSuccess, time.Since(start))
		return true
	case errors.Is(err, tinker.ErrUnavailable):
		metrics.ObserveBackendCall(operation, metrics.OutcomeUnavailable, time.Since(start))
		s.logger.Warn("tinker backend unavailable",
			zap.String("operation", operation),
			zap.String("request_id", RequestID(r.Context())),
		)
		writeError(w, s.logger, http.StatusServiceUnavailable, UnavailableDetail)
		return false
	default:
		metrics.ObserveBackendCall(operation, metrics.OutcomeError, time.Since(start))
		s.logger.Warn("tinker backend call failed",
			zap.String("operation", operation),
			zap.String("request_id", RequestID(r.Context())),
			since(start),
			zap.Error(err),
		)
		writeError(w, s.logger, http.StatusInternalServerError, err.Error())
		return false
	}
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit: must be a positive integer (got %q)", raw)
	}
	return limit, nil
}
