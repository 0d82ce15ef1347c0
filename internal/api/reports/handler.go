package reports

import (
	"net/http"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/api"
	"github.com/johnwards/insights/internal/domain"
	"github.com/johnwards/insights/internal/report"
)

// Handler handles report HTTP requests.
type Handler struct {
	reports *report.Manager
	src     aggregate.Source
}

// Create handles POST /v1/reports.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.Report
	if !api.DecodeJSON(w, r, &in, false) {
		return
	}

	created, err := h.reports.Create(&in)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// Get handles GET /v1/reports/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Get(r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rep)
}

// List handles GET /v1/reports.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	results := h.reports.List(report.ListFilter{
		ObjectName: q.Get("objectName"),
		CreatedBy:  q.Get("createdBy"),
	})
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}

// Update handles PATCH /v1/reports/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.ReportPatch
	if !api.DecodeJSON(w, r, &patch, false) {
		return
	}

	updated, err := h.reports.Update(r.PathValue("id"), patch)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /v1/reports/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.reports.Delete(id) {
		api.WriteDomainError(w, r, &domain.NotFoundError{Kind: "report", ID: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Execute handles POST /v1/reports/{id}/execute. The body is optional.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Params map[string]any `json:"params"`
	}
	if !api.DecodeJSON(w, r, &body, true) {
		return
	}

	result, err := h.reports.Execute(r.Context(), r.PathValue("id"), body.Params, h.src)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}
