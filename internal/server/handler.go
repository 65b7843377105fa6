package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/nevindra/jcl"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// transpileResponse is the body of POST /transpile.
type transpileResponse struct {
	OK             bool   `json:"ok"`
	TranspiledCode string `json:"transpiled_code,omitempty"`
	Error          string `json:"error,omitempty"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (jcl.RunRequest, bool) {
	var req jcl.RunRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return req, false
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return req, false
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return req, false
	}
	return req, true
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	// Acquire execution slot, fail fast under load.
	release, ok := s.acquire()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "server busy: execution capacity reached")
		return
	}
	defer release()

	rec := s.pipeline.Execute(r.Context(), req)
	s.logger.Info("run", "run_id", rec.ID, "stage", rec.Stage, "ok", rec.OK, "duration_ms", rec.DurationMs)
	w.Header().Set("X-Run-ID", rec.ID)
	writeJSON(w, http.StatusOK, rec.Outcome)
}

func (s *Server) handleTranspile(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	target, err := s.pipeline.Transpile(r.Context(), req.Code)
	if err != nil {
		writeJSON(w, http.StatusOK, transpileResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, transpileResponse{OK: true, TranspiledCode: target})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	recs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if recs == nil {
		recs = []jcl.RunRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}
	id := r.PathValue("id")
	rec, err := s.history.GetRun(r.Context(), id)
	switch {
	case errors.Is(err, jcl.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case err != nil:
		s.logger.Error("get run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "JCL API is running", "status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
