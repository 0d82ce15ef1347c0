package aggregations

import (
	"net/http"

	"github.com/johnwards/insights/internal/aggregate"
)

// RegisterRoutes adds the ad-hoc pipeline endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, engine *aggregate.Engine, src aggregate.Source) {
	h := &Handler{engine: engine, src: src}

	mux.HandleFunc("POST /v1/aggregate", h.Execute)
	mux.HandleFunc("POST /v1/aggregate/validate", h.Validate)
}
