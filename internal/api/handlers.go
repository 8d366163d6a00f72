package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/randomizedcoder/go-procsup/internal/process"
	"github.com/randomizedcoder/go-procsup/internal/report"
	"github.com/randomizedcoder/go-procsup/internal/supervisor"
)

// maxBodyBytes bounds request bodies; stdin input is the largest payload.
const maxBodyBytes = 1 << 20

// errBadRequest marks malformed requests.
var errBadRequest = errors.New("bad request")

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	list := s.sup.List()
	resp := HealthzResponse{
		Status:        "ok",
		Instance:      s.config.InstanceID,
		Version:       s.config.Version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Tracked:       len(list),
		Running:       countRunning(list),
	}
	s.respond(w, r, http.StatusOK, resp,
		fmt.Sprintf("ok instance=%s tracked=%d running=%d\n", resp.Instance, resp.Tracked, resp.Running))
}

// handleLaunch handles POST /v1/processes.
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req supervisor.LaunchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.MaxOutputLines < 0 {
		s.writeError(w, r, fmt.Errorf("%w: max_output_lines must not be negative", errBadRequest))
		return
	}

	res, err := s.sup.Launch(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, res, report.Launch(res))
}

// handleList handles GET /v1/processes.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list := s.sup.List()
	resp := ListResponse{
		Processes: list,
		Tracked:   len(list),
		Running:   countRunning(list),
	}
	s.respond(w, r, http.StatusOK, resp, report.List(list))
}

// handleStatus handles GET /v1/processes/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.sup.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, st, report.Status(st))
}

// handleRead handles GET /v1/processes/{id}/output?lines=N&clear=bool.
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lines := 0
	if v := q.Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, fmt.Errorf("%w: lines must be a positive integer", errBadRequest))
			return
		}
		lines = n
	}

	clear := false
	if v := q.Get("clear"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: clear must be a boolean", errBadRequest))
			return
		}
		clear = b
	}

	res, err := s.sup.Read(chi.URLParam(r, "id"), lines, clear)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, res, report.Read(res))
}

// handleWrite handles POST /v1/processes/{id}/input.
func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	newline := true
	if req.Newline != nil {
		newline = *req.Newline
	}

	res, err := s.sup.Write(chi.URLParam(r, "id"), req.Input, newline)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, res, report.Write(res))
}

// handleCloseInput handles DELETE /v1/processes/{id}/input.
func (s *Server) handleCloseInput(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sup.CloseInput(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, CloseInputResponse{ID: id, Closed: true}, report.InputClosed(id))
}

// handleKill handles POST /v1/processes/{id}/kill.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	var req KillRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sig, err := process.ParseSignal(req.Signal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.sup.Kill(chi.URLParam(r, "id"), sig, req.Remove)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, res, report.Kill(res))
}

// handleCleanup handles POST /v1/cleanup.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res := s.sup.Cleanup(req.KillAll)
	s.respond(w, r, http.StatusOK, res, report.Cleanup(res))
}

// =============================================================================
// Helpers
// =============================================================================

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// at its zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// wantsText reports whether the caller asked for a text report.
func wantsText(r *http.Request) bool {
	switch r.URL.Query().Get("format") {
	case "text":
		return true
	case "json":
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/plain") && !strings.Contains(accept, "application/json")
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, payload any, text string) {
	if wantsText(r) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, text)
		return
	}
	respondJSON(w, status, payload)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps err to a status code and writes it in the requested format.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	resp := ErrorResponse{Error: err.Error(), Kind: kind}

	var nf *supervisor.NotFoundError
	if errors.As(err, &nf) {
		resp.ID = nf.ID
		resp.Tracked = nf.Tracked
	}
	var dup *supervisor.DuplicateIDError
	if errors.As(err, &dup) {
		resp.ID = dup.ID
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("api_request_failed", "path", r.URL.Path, "error", err)
	}
	s.respond(w, r, status, resp, report.Error(err))
}

// classify returns the HTTP status and error kind for err.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, supervisor.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, supervisor.ErrDuplicateID):
		return http.StatusConflict, "duplicate_id"
	case errors.Is(err, supervisor.ErrAlreadyExited):
		return http.StatusConflict, "already_exited"
	case errors.Is(err, supervisor.ErrStdinUnavailable):
		return http.StatusConflict, "stdin_unavailable"
	case errors.Is(err, supervisor.ErrEmptyCommand),
		errors.Is(err, process.ErrUnknownSignal),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func countRunning(list []supervisor.Status) int {
	n := 0
	for _, st := range list {
		if !st.Exited {
			n++
		}
	}
	return n
}
