package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"reelforge/internal/compositor"
	"reelforge/internal/history"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/services"
)

const maxBodyBytes = 1 << 20

// StartRunRequest is the body of POST /api/runs.
type StartRunRequest struct {
	Script string `json:"script"`
	pipeline.Overrides
	Style compositor.Style `json:"style"`
}

// StartRunResponse acknowledges a started run.
type StartRunResponse struct {
	RunID string `json:"run_id"`
}

// RecordingRequest is the optional body of POST /api/runs/{id}/recording.
type RecordingRequest struct {
	Style *compositor.Style `json:"style,omitempty"`
}

// HistoryResponse lists stored runs.
type HistoryResponse struct {
	Items []HistoryItem `json:"items"`
}

// HistoryItem summarizes a stored run.
type HistoryItem struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	CreatedAt time.Time        `json:"created_at"`
	Request   pipeline.Request `json:"request"`
	Images    int              `json:"images"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var body StartRunRequest
	if err := decodeBody(r, &body, false); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Script) == "" {
		s.writeError(w, http.StatusBadRequest, "script is required")
		return
	}
	req, err := body.Overrides.Apply(s.opts.Defaults(body.Script))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	style := s.backend.Style(body.Style)

	id := s.opts.NewRunID()
	ctx, cancel := context.WithCancel(s.baseCtx)
	ctx = services.WithRunID(ctx, id)
	if reqID, ok := services.RequestIDFromContext(r.Context()); ok {
		ctx = services.WithRequestID(ctx, reqID)
	}
	s.runs.start(id, cancel, s.opts.Now())
	go s.execute(ctx, cancel, id, req, style)

	s.writeJSON(w, http.StatusAccepted, StartRunResponse{RunID: id})
}

func (s *Server) execute(ctx context.Context, cancel context.CancelFunc, id string, req pipeline.Request, style compositor.Style) {
	defer cancel()
	logger := logging.WithContext(ctx, s.logger)
	observer := pipeline.ObserverFunc(func(p pipeline.Progress) { s.runs.progress(id, p) })

	rec, err := s.backend.Generate(ctx, req, style, observer)
	if err != nil {
		canceled := errors.Is(err, context.Canceled)
		s.runs.fail(id, err, canceled)
		if !canceled {
			logging.WarnWithContext(logger, "run failed", "run_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "no result produced"),
			)
		}
		return
	}
	s.runs.succeed(id, rec)
	logger.Info("run finished", logging.Int("images", len(rec.Result.Images)))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if view, _, ok := s.runs.get(id); ok {
		s.writeJSON(w, http.StatusOK, view)
		return
	}
	rec, err := s.backend.Lookup(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	result := rec.Result
	s.writeJSON(w, http.StatusOK, RunView{
		ID:        rec.ID,
		Status:    RunSucceeded,
		Progress:  pipeline.Progress{RunID: rec.ID, Stage: pipeline.StageReady},
		Result:    &result,
		StartedAt: rec.CreatedAt,
	})
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.runs.cancelRun(id) {
		s.writeError(w, http.StatusNotFound, "no running run "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid image index")
		return
	}
	rec, err := s.finishedRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	updated, err := s.backend.Regenerate(r.Context(), rec, index)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.runs.update(updated)
	s.writeJSON(w, http.StatusOK, updated.Result.Images[index])
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	var body RecordingRequest
	if err := decodeBody(r, &body, true); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.finishedRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	style := rec.Style
	if body.Style != nil {
		style = style.Merge(*body.Style)
	}
	recording, err := s.backend.Record(r.Context(), rec, style, nil)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", recording.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(recording.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.ID+recording.Extension))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(recording.Data)
}

// finishedRecord returns the record for id from the registry or history. A
// run that is still in progress is a validation error.
func (s *Server) finishedRecord(ctx context.Context, id string) (history.Record, error) {
	if view, rec, ok := s.runs.get(id); ok {
		if rec != nil {
			return *rec, nil
		}
		if view.Status == RunRunning {
			return history.Record{}, services.Wrap(services.ErrValidation, "api", "lookup", "run "+id+" is still running", nil)
		}
		return history.Record{}, services.Wrap(services.ErrValidation, "api", "lookup", "run "+id+" did not succeed", nil)
	}
	return s.backend.Lookup(ctx, id)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.history.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	items := make([]HistoryItem, 0, len(records))
	for _, rec := range records {
		items = append(items, HistoryItem{
			ID:        rec.ID,
			Title:     rec.Title,
			CreatedAt: rec.CreatedAt,
			Request:   rec.Request,
			Images:    len(rec.Result.Images),
		})
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Items: items})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := s.history.Clear(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func decodeBody(r *http.Request, out any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrRecordingBusy):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, services.ErrTimeout), errors.Is(err, services.ErrTranscriptionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrNarration), errors.Is(err, services.ErrTranscription),
		errors.Is(err, services.ErrIllustration), errors.Is(err, services.ErrMalformedTranscript):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("api request failed", logging.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: services.Kind(err)})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("api response encode failed", logging.Error(err))
	}
}
