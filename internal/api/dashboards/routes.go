package dashboards

import (
	"net/http"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/dashboard"
)

// RegisterRoutes adds the dashboard and widget endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, m *dashboard.Manager, src aggregate.Source) {
	h := &Handler{dashboards: m, src: src}

	mux.HandleFunc("GET /v1/dashboards", h.List)
	mux.HandleFunc("POST /v1/dashboards", h.Create)
	mux.HandleFunc("GET /v1/dashboards/{id}", h.Get)
	mux.HandleFunc("PATCH /v1/dashboards/{id}", h.Update)
	mux.HandleFunc("DELETE /v1/dashboards/{id}", h.Delete)
	mux.HandleFunc("POST /v1/dashboards/{id}/execute", h.Execute)
	mux.HandleFunc("POST /v1/dashboards/{id}/widgets", h.AddWidget)
	mux.HandleFunc("PATCH /v1/dashboards/{id}/widgets/{widgetId}", h.UpdateWidget)
	mux.HandleFunc("DELETE /v1/dashboards/{id}/widgets/{widgetId}", h.RemoveWidget)
	mux.HandleFunc("POST /v1/dashboards/{id}/widgets/{widgetId}/execute", h.ExecuteWidget)
}
