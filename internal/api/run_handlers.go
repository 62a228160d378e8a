package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/pipeline"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// RunStatus is the live view of a discovery run.
type RunStatus struct {
	RunID    string          `json:"run_id"`
	Topic    string          `json:"topic"`
	State    string          `json:"state"`
	Report   pipeline.Report `json:"report"`
	ErrorMsg string          `json:"error,omitempty"`
}

// RunService drives discovery runs on behalf of the HTTP layer.
type RunService interface {
	StartRun(ctx context.Context, topic discovery.Topic) (string, error)
	RunStatus(ctx context.Context, runID string) (RunStatus, error)
	RunSummary(ctx context.Context, runID string) (discovery.RunSummary, error)
	RunEvents(ctx context.Context, runID string, limit int) ([]progress.Event, error)
	SweepRun(ctx context.Context, runID string) (pipeline.SweepReport, error)
}

type startRunRequest struct {
	Topic struct {
		Name            string   `json:"name"`
		Aliases         []string `json:"aliases"`
		Handle          string   `json:"handle"`
		ContestedClaims []string `json:"contested_claims"`
	} `json:"topic"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Topic.Name) == "" {
		writeError(w, http.StatusBadRequest, "topic.name is required")
		return
	}

	topic := discovery.Topic{
		Name:            req.Topic.Name,
		Aliases:         req.Topic.Aliases,
		Handle:          req.Topic.Handle,
		ContestedClaims: req.Topic.ContestedClaims,
	}
	runID, err := s.runs.StartRun(r.Context(), topic)
	if err != nil {
		s.logger.Error("start run failed", zap.String("topic", topic.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) getRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	status, err := s.runs.RunStatus(r.Context(), runID)
	if err != nil {
		if errors.Is(err, discovery.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("run status failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) getRunSummary(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	summary, err := s.runs.RunSummary(r.Context(), runID)
	if err != nil {
		if errors.Is(err, discovery.ErrNotFound) {
			writeError(w, http.StatusNotFound, "summary not available")
			return
		}
		s.logger.Error("run summary failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (s *Server) getRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxEventLimit {
			writeError(w, http.StatusBadRequest, "limit must be in (0, 500]")
			return
		}
		limit = parsed
	}

	events, err := s.runs.RunEvents(r.Context(), runID, limit)
	if err != nil {
		if errors.Is(err, discovery.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("run events failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) sweepRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	report, err := s.runs.SweepRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, discovery.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("sweep failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to sweep run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sweep": report})
}
