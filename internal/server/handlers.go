// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/services"

	"github.com/go-chi/chi/v5"
)

const defaultRunsLimit = 50

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	runs *services.RunService
	data *services.DataService
}

// NewHandlers creates the handler set.
func NewHandlers(runs *services.RunService, data *services.DataService) *Handlers {
	return &Handlers{runs: runs, data: data}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps service errors to status codes.
func writeError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrRunNotActive):
		status = http.StatusConflict
	case errors.Is(err, services.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": msg, "context": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return false
	}
	return true
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		getLog().Error().Err(err).Msg("Failed to write attachment")
	}
}

// --- runs ---

// GetVariants handles GET /api/v1/variants
func (h *Handlers) GetVariants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]models.Variant{"variants": models.Variants})
}

// StartRun handles POST /api/v1/variants/{variant}/runs
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	v, err := models.ParseVariant(chi.URLParam(r, "variant"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown variant", "context": err.Error()})
		return
	}

	var req models.PipelineRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	run, err := h.runs.Start(r.Context(), v, req)
	if err != nil {
		writeError(w, "Failed to start run", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": run.ID, "status": string(run.Status)})
}

// GetRuns handles GET /api/v1/runs
func (h *Handlers) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		writeError(w, "Failed to load runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// GetRun handles GET /api/v1/runs/{runId}
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(r.Context(), chi.URLParam(r, "runId"))
	if err != nil {
		writeError(w, "Failed to load run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunOutput handles GET /api/v1/runs/{runId}/output. Unlike the stored
// run, the output carries generated images.
func (h *Handlers) GetRunOutput(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")
	outcome, ok := h.runs.Outcome(runID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Output not available", "context": "run " + runID + " has no output in this process"})
		return
	}
	writeJSON(w, http.StatusOK, outcome.Output)
}

// CancelRun handles POST /api/v1/runs/{runId}/cancel
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")
	if err := h.runs.Cancel(r.Context(), runID); err != nil {
		writeError(w, "Failed to cancel run", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "cancelling"})
}

// GetRunDOCX handles GET /api/v1/runs/{runId}/document.docx
func (h *Handlers) GetRunDOCX(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")
	bundle, ok := h.runs.Document(runID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Document not available", "context": "run " + runID})
		return
	}
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", runID+".docx", bundle.DOCX)
}

// GetRunPDF handles GET /api/v1/runs/{runId}/document.pdf
func (h *Handlers) GetRunPDF(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")
	bundle, ok := h.runs.Document(runID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Document not available", "context": "run " + runID})
		return
	}
	if !bundle.HasPDF() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "PDF not available", "context": bundle.PDFError})
		return
	}
	writeAttachment(w, "application/pdf", runID+".pdf", bundle.PDF)
}

// --- landing pages ---

// GetLandingPages handles GET /api/v1/landing-pages
func (h *Handlers) GetLandingPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.data.ListLandingPages(r.Context())
	if err != nil {
		writeError(w, "Failed to load landing pages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"landing_pages": pages})
}

// CreateLandingPage handles POST /api/v1/landing-pages
func (h *Handlers) CreateLandingPage(w http.ResponseWriter, r *http.Request) {
	var page models.LandingPage
	if !decodeJSON(w, r, &page) {
		return
	}
	page.ID = ""
	saved, err := h.data.SaveLandingPage(r.Context(), &page)
	if err != nil {
		writeError(w, "Failed to save landing page", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// GetLandingPage handles GET /api/v1/landing-pages/{id}
func (h *Handlers) GetLandingPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.data.GetLandingPage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "Failed to load landing page", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// DeleteLandingPage handles DELETE /api/v1/landing-pages/{id}
func (h *Handlers) DeleteLandingPage(w http.ResponseWriter, r *http.Request) {
	if err := h.data.DeleteLandingPage(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "Failed to delete landing page", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- order bumps ---

type createOrderBumpsRequest struct {
	Bumps []models.OrderBump `json:"bumps"`
	RunID string             `json:"run_id,omitempty"`
}

// GetOrderBumps handles GET /api/v1/order-bumps?category=
func (h *Handlers) GetOrderBumps(w http.ResponseWriter, r *http.Request) {
	category := models.OrderBumpCategory(r.URL.Query().Get("category"))
	bumps, err := h.data.ListOrderBumps(r.Context(), category)
	if err != nil {
		writeError(w, "Failed to load order bumps", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order_bumps": bumps})
}

// CreateOrderBumps handles POST /api/v1/order-bumps
func (h *Handlers) CreateOrderBumps(w http.ResponseWriter, r *http.Request) {
	var body createOrderBumpsRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.Bumps) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bumps is required and must not be empty"})
		return
	}
	rows, err := h.data.SaveOrderBumps(r.Context(), body.Bumps, body.RunID)
	if err != nil {
		writeError(w, "Failed to save order bumps", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"order_bumps": rows})
}

// DeleteOrderBump handles DELETE /api/v1/order-bumps/{id}
func (h *Handlers) DeleteOrderBump(w http.ResponseWriter, r *http.Request) {
	if err := h.data.DeleteOrderBump(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "Failed to delete order bump", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- themes ---

// GetThemes handles GET /api/v1/themes
func (h *Handlers) GetThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := h.data.ListThemes(r.Context())
	if err != nil {
		writeError(w, "Failed to load themes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"themes": themes})
}

// CreateTheme handles POST /api/v1/themes
func (h *Handlers) CreateTheme(w http.ResponseWriter, r *http.Request) {
	var theme models.Theme
	if !decodeJSON(w, r, &theme) {
		return
	}
	row, err := h.data.SaveTheme(r.Context(), theme, "")
	if err != nil {
		writeError(w, "Failed to save theme", err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// GetTheme handles GET /api/v1/themes/{id}
func (h *Handlers) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.data.GetTheme(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "Failed to load theme", err)
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

// DeleteTheme handles DELETE /api/v1/themes/{id}
func (h *Handlers) DeleteTheme(w http.ResponseWriter, r *http.Request) {
	if err := h.data.DeleteTheme(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "Failed to delete theme", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
