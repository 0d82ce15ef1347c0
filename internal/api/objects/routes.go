package objects

import (
	"net/http"

	"github.com/johnwards/insights/internal/store"
)

// RegisterRoutes adds the record endpoints pipelines read from.
func RegisterRoutes(mux *http.ServeMux, s store.ObjectStore) {
	h := &Handler{store: s}

	mux.HandleFunc("GET /v1/objects/{objectName}", h.List)
	mux.HandleFunc("POST /v1/objects/{objectName}", h.Create)
	mux.HandleFunc("POST /v1/objects/{objectName}/batch/create", h.BatchCreate)
	mux.HandleFunc("GET /v1/objects/{objectName}/{objectId}", h.Get)
	mux.HandleFunc("PATCH /v1/objects/{objectName}/{objectId}", h.Update)
	mux.HandleFunc("DELETE /v1/objects/{objectName}/{objectId}", h.Archive)
}
