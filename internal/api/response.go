package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

// WriteJSON marshals v as JSON and writes it to w with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// DecodeJSON decodes the request body into v. An empty body leaves v
// untouched when allowEmpty is set. On failure it writes a 400 response and
// returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		WriteError(w, http.StatusBadRequest, NewValidationError(
			fmt.Sprintf("Invalid input JSON: %v", err), CorrelationID(r.Context()), nil))
		return false
	}
	return true
}

// CollectionResponse is a list response.
type CollectionResponse struct {
	Results any     `json:"results"`
	Paging  *Paging `json:"paging,omitempty"`
}

// Paging represents cursor-based pagination info.
type Paging struct {
	Next *PagingNext `json:"next,omitempty"`
}

// PagingNext holds the cursor for the next page.
type PagingNext struct {
	After string `json:"after"`
}
