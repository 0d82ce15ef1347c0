package reports_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/api"
	"github.com/johnwards/insights/internal/api/reports"
	"github.com/johnwards/insights/internal/domain"
	"github.com/johnwards/insights/internal/report"
)

const highEarners = `{
	"id": "high-earners",
	"name": "High earners",
	"objectName": "employees",
	"format": "table",
	"createdBy": "alice",
	"parameters": [{"name": "minSalary", "type": "number", "defaultValue": 100000}],
	"stages": [
		{"type": "match", "body": {"salary": {"$gte": "$param.minSalary"}}},
		{"type": "sort", "body": {"name": 1}},
		{"type": "project", "body": {"name": 1}}
	]
}`

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	src := aggregate.NewStaticSource(map[string][]domain.Record{
		"employees": {
			{"name": "Ada", "department": "Engineering", "salary": 120000.0},
			{"name": "Brian", "department": "Engineering", "salary": 95000.0},
			{"name": "Chen", "department": "Sales", "salary": 85000.0},
			{"name": "Dana", "department": "Sales", "salary": 110000.0},
		},
	})
	mux := http.NewServeMux()
	reports.RegisterRoutes(mux, report.NewManager(aggregate.New()), src)

	srv := httptest.NewServer(api.Chain(mux, api.RequestID()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func names(data []domain.Record) []string {
	out := make([]string, len(data))
	for i, rec := range data {
		out[i], _ = rec["name"].(string)
	}
	return out
}

func TestCreateAndGet(t *testing.T) {
	srv := setupServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/reports", highEarners)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	var created domain.Report
	decode(t, resp, &created)
	if created.CreatedAt.IsZero() {
		t.Error("expected createdAt to be set")
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/reports/high-earners", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}
	var got domain.Report
	decode(t, resp, &got)
	if got.Name != "High earners" || len(got.Stages) != 3 {
		t.Errorf("got %+v", got)
	}
	if keys := got.Stages[2].Body.Keys(); len(keys) != 1 || keys[0] != "name" {
		t.Errorf("project body keys = %v", keys)
	}

	if resp := do(t, http.MethodPost, srv.URL+"/v1/reports", highEarners); resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create: status = %d, want 409", resp.StatusCode)
	}
}

func TestCreateValidation(t *testing.T) {
	srv := setupServer(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing name", `{"objectName":"employees","stages":[{"type":"count","body":{"as":"n"}}]}`, "name"},
		{"bad format", `{"name":"x","objectName":"employees","format":"pdf","stages":[{"type":"count","body":{"as":"n"}}]}`, "format"},
		{"unknown stage", `{"name":"x","objectName":"employees","stages":[{"type":"explode","body":{}}]}`, "stages[0].type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/v1/reports", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			var e api.Error
			decode(t, resp, &e)
			if len(e.Errors) != 1 || e.Errors[0].In != tt.field {
				t.Errorf("errors = %+v, want field %q", e.Errors, tt.field)
			}
		})
	}
}

func TestListFilters(t *testing.T) {
	srv := setupServer(t)
	do(t, http.MethodPost, srv.URL+"/v1/reports", highEarners)
	do(t, http.MethodPost, srv.URL+"/v1/reports",
		`{"id":"deal-count","name":"Deals","objectName":"deals","createdBy":"bob","stages":[{"type":"count","body":{"as":"n"}}]}`)

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?objectName=deals", 1},
		{"?createdBy=alice", 1},
		{"?createdBy=alice&objectName=deals", 0},
	}
	for _, tt := range tests {
		resp := do(t, http.MethodGet, srv.URL+"/v1/reports"+tt.query, "")
		var results []domain.Report
		decode(t, resp, &api.CollectionResponse{Results: &results})
		if len(results) != tt.want {
			t.Errorf("%q: got %d reports, want %d", tt.query, len(results), tt.want)
		}
	}
}

func TestUpdateAndDelete(t *testing.T) {
	srv := setupServer(t)
	do(t, http.MethodPost, srv.URL+"/v1/reports", highEarners)

	resp := do(t, http.MethodPatch, srv.URL+"/v1/reports/high-earners", `{"name":"Top earners","format":"chart"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d", resp.StatusCode)
	}
	var updated domain.Report
	decode(t, resp, &updated)
	if updated.Name != "Top earners" || updated.Format != domain.FormatChart {
		t.Errorf("updated = %+v", updated)
	}

	if resp := do(t, http.MethodPatch, srv.URL+"/v1/reports/high-earners", `{"format":"pdf"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid update: status = %d, want 400", resp.StatusCode)
	}
	if resp := do(t, http.MethodPatch, srv.URL+"/v1/reports/missing", `{"name":"x"}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("update missing: status = %d, want 404", resp.StatusCode)
	}

	if resp := do(t, http.MethodDelete, srv.URL+"/v1/reports/high-earners", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, srv.URL+"/v1/reports/high-earners", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", resp.StatusCode)
	}
}

func TestExecute(t *testing.T) {
	srv := setupServer(t)
	do(t, http.MethodPost, srv.URL+"/v1/reports", highEarners)

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"no body uses default", "", []string{"Ada", "Dana"}},
		{"empty params", `{}`, []string{"Ada", "Dana"}},
		{"explicit param", `{"params":{"minSalary":90000}}`, []string{"Ada", "Brian", "Dana"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/v1/reports/high-earners/execute", tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			var res domain.ReportResult
			decode(t, resp, &res)
			got := names(res.Data)
			if len(got) != len(tt.want) {
				t.Fatalf("names = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("names = %v, want %v", got, tt.want)
					break
				}
			}
			if res.ReportID != "high-earners" || res.Metadata.RecordsProcessed != 4 {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestExecuteKeepsProjectedOrder(t *testing.T) {
	srv := setupServer(t)
	do(t, http.MethodPost, srv.URL+"/v1/reports",
		`{"id":"pay","name":"Pay","objectName":"employees",
		  "stages":[{"type":"match","body":{"name":"Ada"}},{"type":"project","body":{"salary":1,"name":1}}]}`)

	resp := do(t, http.MethodPost, srv.URL+"/v1/reports/pay/execute", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var raw map[string]json.RawMessage
	decode(t, resp, &raw)
	if got := string(raw["data"]); got != `[{"salary":120000,"name":"Ada"}]` {
		t.Errorf("data = %s", got)
	}
}

func TestExecuteErrors(t *testing.T) {
	srv := setupServer(t)
	do(t, http.MethodPost, srv.URL+"/v1/reports",
		`{"id":"by-dept","name":"By department","objectName":"employees",
		  "parameters":[{"name":"dept","type":"string","required":true}],
		  "stages":[{"type":"match","body":{"department":"$param.dept"}}]}`)
	do(t, http.MethodPost, srv.URL+"/v1/reports",
		`{"id":"sorted","name":"Sorted","objectName":"employees",
		  "parameters":[{"name":"dir","type":"number","defaultValue":1}],
		  "stages":[{"type":"sort","body":{"salary":"$param.dir"}}]}`)

	tests := []struct {
		name     string
		path     string
		body     string
		status   int
		category string
	}{
		{"missing required", "/v1/reports/by-dept/execute", `{"params":{}}`, http.StatusUnprocessableEntity, api.CategoryExecutionError},
		{"wrong type", "/v1/reports/by-dept/execute", `{"params":{"dept":7}}`, http.StatusUnprocessableEntity, api.CategoryExecutionError},
		{"malformed body after substitution", "/v1/reports/sorted/execute", `{"params":{"dir":2}}`, http.StatusUnprocessableEntity, api.CategoryExecutionError},
		{"unknown report", "/v1/reports/nope/execute", `{}`, http.StatusNotFound, api.CategoryObjectNotFound},
		{"bad body", "/v1/reports/by-dept/execute", `{"params":`, http.StatusBadRequest, api.CategoryValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var e api.Error
			decode(t, resp, &e)
			if e.Category != tt.category {
				t.Errorf("category = %q, want %q", e.Category, tt.category)
			}
		})
	}
}
