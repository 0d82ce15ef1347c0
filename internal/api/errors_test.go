package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnwards/insights/internal/domain"
	"github.com/johnwards/insights/internal/schedule"

	"github.com/johnwards/insights/internal/api"
)

func TestErrorConstructors(t *testing.T) {
	details := []api.ErrorDetail{{Message: "stages[0]: unknown stage", Code: "INVALID", In: "stages"}}

	tests := []struct {
		name     string
		err      *api.Error
		category string
		details  int
	}{
		{"not found", api.NewNotFoundError("report r1 not found", "c-1"), api.CategoryObjectNotFound, 0},
		{"validation", api.NewValidationError("invalid pipeline", "c-1", details), api.CategoryValidationError, 1},
		{"conflict", api.NewConflictError("report r1 already exists", "c-1"), api.CategoryConflict, 0},
		{"execution", api.NewExecutionError("execute report r1: boom", "c-1"), api.CategoryExecutionError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Status != "error" || tt.err.CorrelationID != "c-1" || tt.err.Message == "" {
				t.Errorf("envelope = %+v", tt.err)
			}
			if tt.err.Category != tt.category {
				t.Errorf("category = %q, want %q", tt.err.Category, tt.category)
			}
			if len(tt.err.Errors) != tt.details {
				t.Errorf("details = %+v, want %d", tt.err.Errors, tt.details)
			}
		})
	}
}

func TestWriteErrorOmitsEmptyDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteError(rec, http.StatusConflict, api.NewConflictError("dashboard d1 already exists", "c-2"))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var raw map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if _, ok := raw["errors"]; ok {
		t.Errorf("errors key present with no details: %v", raw)
	}
	if raw["correlationId"] != "c-2" {
		t.Errorf("correlationId = %v, want c-2", raw["correlationId"])
	}
}

func TestWriteDomainError(t *testing.T) {
	_, cronErr := schedule.ParseCron("* * *")

	tests := []struct {
		name     string
		err      error
		status   int
		category string
		in       string
	}{
		{"validation", domain.Invalid("name", "is required"), http.StatusBadRequest, api.CategoryValidationError, "name"},
		{"cron", cronErr, http.StatusBadRequest, api.CategoryValidationError, ""},
		{"not found", &domain.NotFoundError{Kind: "report", ID: "r1"}, http.StatusNotFound, api.CategoryObjectNotFound, ""},
		{"wrapped not found", fmt.Errorf("widget w1: %w", &domain.NotFoundError{Kind: "report", ID: "r1"}), http.StatusNotFound, api.CategoryObjectNotFound, ""},
		{"conflict", &domain.ConflictError{Kind: "report", ID: "r1"}, http.StatusConflict, api.CategoryConflict, ""},
		{
			"execution with parameter error",
			&domain.ExecutionError{Op: "execute report r1", Err: domain.Invalid("params.dept", "required parameter missing: dept")},
			http.StatusUnprocessableEntity, api.CategoryExecutionError, "params.dept",
		},
		{
			"execution with missing object",
			&domain.ExecutionError{Op: "fetch nothing", Err: &domain.NotFoundError{Kind: "object type", ID: "nothing"}},
			http.StatusNotFound, api.CategoryObjectNotFound, "",
		},
		{"execution", &domain.ExecutionError{Op: "fetch contacts", Err: errors.New("disk on fire")}, http.StatusBadGateway, api.CategoryExecutionError, ""},
		{"internal", errors.New("boom"), http.StatusInternalServerError, api.CategoryInternalError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			api.WriteDomainError(rec, req, tt.err)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var got api.Error
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode JSON: %v", err)
			}
			if got.Category != tt.category {
				t.Errorf("category = %q, want %q", got.Category, tt.category)
			}
			if tt.in != "" && (len(got.Errors) != 1 || got.Errors[0].In != tt.in) {
				t.Errorf("errors = %+v, want one detail in %q", got.Errors, tt.in)
			}
		})
	}
}
