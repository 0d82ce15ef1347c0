package dashboards

import (
	"net/http"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/api"
	"github.com/johnwards/insights/internal/dashboard"
	"github.com/johnwards/insights/internal/domain"
)

// Handler handles dashboard HTTP requests.
type Handler struct {
	dashboards *dashboard.Manager
	src        aggregate.Source
}

// Create handles POST /v1/dashboards.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.Dashboard
	if !api.DecodeJSON(w, r, &in, false) {
		return
	}

	created, err := h.dashboards.Create(&in)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// Get handles GET /v1/dashboards/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboards.Get(r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, d)
}

// List handles GET /v1/dashboards. With ?userId= only dashboards owned by or
// shared with that user are returned.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	results := h.dashboards.List(r.URL.Query().Get("userId"))
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}

// Update handles PATCH /v1/dashboards/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.DashboardPatch
	if !api.DecodeJSON(w, r, &patch, false) {
		return
	}

	updated, err := h.dashboards.Update(r.PathValue("id"), patch)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /v1/dashboards/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.dashboards.Delete(id) {
		api.WriteDomainError(w, r, &domain.NotFoundError{Kind: "dashboard", ID: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddWidget handles POST /v1/dashboards/{id}/widgets.
func (h *Handler) AddWidget(w http.ResponseWriter, r *http.Request) {
	var in domain.Widget
	if !api.DecodeJSON(w, r, &in, false) {
		return
	}

	added, err := h.dashboards.AddWidget(r.PathValue("id"), in)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, added)
}

// UpdateWidget handles PATCH /v1/dashboards/{id}/widgets/{widgetId}.
func (h *Handler) UpdateWidget(w http.ResponseWriter, r *http.Request) {
	var patch domain.WidgetPatch
	if !api.DecodeJSON(w, r, &patch, false) {
		return
	}

	updated, err := h.dashboards.UpdateWidget(r.PathValue("id"), r.PathValue("widgetId"), patch)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, updated)
}

// RemoveWidget handles DELETE /v1/dashboards/{id}/widgets/{widgetId}.
func (h *Handler) RemoveWidget(w http.ResponseWriter, r *http.Request) {
	if err := h.dashboards.RemoveWidget(r.PathValue("id"), r.PathValue("widgetId")); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dashboardResult struct {
	DashboardID string                          `json:"dashboardId"`
	Widgets     map[string]*domain.WidgetResult `json:"widgets"`
}

// Execute handles POST /v1/dashboards/{id}/execute.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	results, err := h.dashboards.ExecuteDashboard(r.Context(), id, h.src)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, dashboardResult{DashboardID: id, Widgets: results})
}

// ExecuteWidget handles POST /v1/dashboards/{id}/widgets/{widgetId}/execute.
func (h *Handler) ExecuteWidget(w http.ResponseWriter, r *http.Request) {
	res, err := h.dashboards.ExecuteWidget(r.Context(), r.PathValue("id"), r.PathValue("widgetId"), h.src)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}
