package objects

import (
	"net/http"
	"strconv"

	"github.com/johnwards/insights/internal/api"
	"github.com/johnwards/insights/internal/domain"
	"github.com/johnwards/insights/internal/store"
)

// Handler handles object record HTTP requests.
type Handler struct {
	store store.ObjectStore
}

const (
	defaultLimit = 10
	maxLimit     = 100
	maxBatchSize = 100
)

type propertiesBody struct {
	Properties map[string]string `json:"properties"`
}

// Create handles POST /v1/objects/{objectName}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	objectName := r.PathValue("objectName")
	corrID := api.CorrelationID(r.Context())

	var body propertiesBody
	if !api.DecodeJSON(w, r, &body, false) {
		return
	}
	if body.Properties == nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("properties is required", corrID, nil))
		return
	}

	obj, err := h.store.Create(r.Context(), objectName, body.Properties)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, obj)
}

// BatchCreate handles POST /v1/objects/{objectName}/batch/create.
func (h *Handler) BatchCreate(w http.ResponseWriter, r *http.Request) {
	objectName := r.PathValue("objectName")
	corrID := api.CorrelationID(r.Context())

	var body struct {
		Inputs []domain.CreateInput `json:"inputs"`
	}
	if !api.DecodeJSON(w, r, &body, false) {
		return
	}
	if len(body.Inputs) == 0 {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("inputs is required", corrID, nil))
		return
	}
	if len(body.Inputs) > maxBatchSize {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError(
			"Batch size exceeds maximum of "+strconv.Itoa(maxBatchSize), corrID, nil))
		return
	}

	objs, err := h.store.BatchCreate(r.Context(), objectName, body.Inputs)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, api.CollectionResponse{Results: objs})
}

// Get handles GET /v1/objects/{objectName}/{objectId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	obj, err := h.store.Get(r.Context(), r.PathValue("objectName"), r.PathValue("objectId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, obj)
}

// List handles GET /v1/objects/{objectName}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = min(parsed, maxLimit)
		}
	}

	page, err := h.store.List(r.Context(), r.PathValue("objectName"), domain.ListOpts{
		Limit:    limit,
		After:    q.Get("after"),
		Archived: q.Get("archived") == "true",
	})
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	resp := api.CollectionResponse{Results: page.Results}
	if page.Results == nil {
		resp.Results = []*domain.Object{}
	}
	if page.HasMore {
		resp.Paging = &api.Paging{Next: &api.PagingNext{After: page.After}}
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// Update handles PATCH /v1/objects/{objectName}/{objectId}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())

	var body propertiesBody
	if !api.DecodeJSON(w, r, &body, false) {
		return
	}
	if len(body.Properties) == 0 {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("properties is required", corrID, nil))
		return
	}

	obj, err := h.store.Update(r.Context(), r.PathValue("objectName"), r.PathValue("objectId"), body.Properties)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, obj)
}

// Archive handles DELETE /v1/objects/{objectName}/{objectId}.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Archive(r.Context(), r.PathValue("objectName"), r.PathValue("objectId")); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
