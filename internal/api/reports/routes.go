package reports

import (
	"net/http"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/report"
)

// RegisterRoutes adds the report endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, m *report.Manager, src aggregate.Source) {
	h := &Handler{reports: m, src: src}

	mux.HandleFunc("GET /v1/reports", h.List)
	mux.HandleFunc("POST /v1/reports", h.Create)
	mux.HandleFunc("GET /v1/reports/{id}", h.Get)
	mux.HandleFunc("PATCH /v1/reports/{id}", h.Update)
	mux.HandleFunc("DELETE /v1/reports/{id}", h.Delete)
	mux.HandleFunc("POST /v1/reports/{id}/execute", h.Execute)
}
