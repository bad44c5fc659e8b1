package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okian/findna/internal/adapters/report"
	"github.com/okian/findna/internal/adapters/repository"
	service "github.com/okian/findna/internal/app"
)

// ProfileHandler serves the profile routes.
type ProfileHandler struct {
	deps     Dependencies
	maxLimit int
	currency string
}

// HandleBuild handles POST /v1/profiles. The build runs synchronously and
// the service validates the request.
func (h *ProfileHandler) HandleBuild(w http.ResponseWriter, r *http.Request) {
	var req service.BuildRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON: %w", ErrBadRequest, err))
		return
	}

	res, err := h.deps.Build(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if !res.Persisted {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

// HandleGet handles GET /v1/profiles/{session_id}.
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Get(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleContext handles GET /v1/profiles/{session_id}/context.
func (h *ProfileHandler) HandleContext(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.GetContext(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleReport handles GET /v1/profiles/{session_id}/report. A missing
// context only drops the insights section.
func (h *ProfileHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	p, err := h.deps.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	opts := report.Options{Currency: h.currency}
	if c, err := h.deps.GetContext(r.Context(), sessionID); err == nil {
		opts.Context = c
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeError(w, err)
		return
	}

	md, err := report.Markdown(p, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = io.WriteString(w, md)
		return
	}
	html, err := report.HTML(md)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}

// HandleRange handles GET /v1/profiles?min=&max=.
func (h *ProfileHandler) HandleRange(w http.ResponseWriter, r *http.Request) {
	lo, err := floatParam(r, "min", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	hi, err := floatParam(r, "max", 100)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.deps.ByDisciplineRange(r.Context(), lo, hi)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleTop handles GET /v1/profiles/top?limit=.
func (h *ProfileHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	n, err := h.limit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.deps.Top(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleAttention handles GET /v1/profiles/attention?limit=.
func (h *ProfileHandler) HandleAttention(w http.ResponseWriter, r *http.Request) {
	n, err := h.limit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.deps.NeedsAttention(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// limit parses the limit parameter, clamping it to the configured maximum.
func (h *ProfileHandler) limit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(defaultLimit, h.maxLimit), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
	}
	return min(n, h.maxLimit), nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be a number", ErrBadRequest, name)
	}
	return v, nil
}
