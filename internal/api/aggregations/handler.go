package aggregations

import (
	"errors"
	"net/http"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/api"
	"github.com/johnwards/insights/internal/domain"
)

// Handler runs pipelines submitted over HTTP.
type Handler struct {
	engine *aggregate.Engine
	src    aggregate.Source
}

// Execute handles POST /v1/aggregate.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var p domain.Pipeline
	if !api.DecodeJSON(w, r, &p, false) {
		return
	}

	result, err := h.engine.Execute(r.Context(), p, h.src)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

type validateResponse struct {
	Valid  bool   `json:"valid"`
	Stages int    `json:"stages"`
	Field  string `json:"field,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Validate handles POST /v1/aggregate/validate. A malformed pipeline is a
// successful check: the response carries valid=false and the offending field.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var p domain.Pipeline
	if !api.DecodeJSON(w, r, &p, false) {
		return
	}

	resp := validateResponse{Valid: true, Stages: len(p.Stages)}
	if err := h.engine.Check(p); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			resp.Field = ve.Field
			resp.Error = ve.Message
		}
	}
	api.WriteJSON(w, http.StatusOK, resp)
}
