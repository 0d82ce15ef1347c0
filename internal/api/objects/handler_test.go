package objects_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnwards/insights/internal/api"
	"github.com/johnwards/insights/internal/api/objects"
	"github.com/johnwards/insights/internal/domain"
	"github.com/johnwards/insights/internal/store"
	"github.com/johnwards/insights/internal/testhelpers"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testhelpers.NewSeededDB(t)

	s := store.New(db)
	mux := http.NewServeMux()
	objects.RegisterRoutes(mux, s.Objects)

	srv := httptest.NewServer(api.Chain(mux, api.RequestID()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var rdr *bytes.Buffer
	if body == "" {
		rdr = &bytes.Buffer{}
	} else {
		rdr = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, rdr)
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

func createEmployee(t *testing.T, srv *httptest.Server, props string) domain.Object {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/v1/objects/employees", `{"properties":`+props+`}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	var obj domain.Object
	decode(t, resp, &obj)
	return obj
}

func TestCreateAndGet(t *testing.T) {
	srv := setupServer(t)

	created := createEmployee(t, srv, `{"name":"Ada","department":"Engineering"}`)
	if created.ID == "" {
		t.Fatal("expected non-empty ID")
	}

	resp := do(t, http.MethodGet, srv.URL+"/v1/objects/employees/"+created.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}
	var got domain.Object
	decode(t, resp, &got)
	if got.Properties["department"] != "Engineering" {
		t.Errorf("department = %q, want Engineering", got.Properties["department"])
	}
}

func TestCreateValidation(t *testing.T) {
	srv := setupServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"properties":`},
		{"missing properties", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/v1/objects/employees", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestCreateRegistersCustomType(t *testing.T) {
	srv := setupServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/objects/widgets", `{"properties":{"sku":"w-1"}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/objects/widgets", "")
	var page struct {
		Results []domain.Object `json:"results"`
	}
	decode(t, resp, &page)
	if len(page.Results) != 1 {
		t.Errorf("results = %d, want 1", len(page.Results))
	}
}

func TestGetNotFound(t *testing.T) {
	srv := setupServer(t)

	for _, path := range []string{"/v1/objects/employees/999", "/v1/objects/nothing/1"} {
		resp := do(t, http.MethodGet, srv.URL+path, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, resp.StatusCode)
		}
		var e api.Error
		decode(t, resp, &e)
		if e.Category != api.CategoryObjectNotFound {
			t.Errorf("%s: category = %q", path, e.Category)
		}
	}
}

func TestListPaging(t *testing.T) {
	srv := setupServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/objects/employees/batch/create",
		`{"inputs":[{"properties":{"name":"a"}},{"properties":{"name":"b"}},{"properties":{"name":"c"}}]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("batch create: status %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/objects/employees?limit=2", "")
	var page api.CollectionResponse
	var results []domain.Object
	page.Results = &results
	decode(t, resp, &page)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if page.Paging == nil || page.Paging.Next == nil {
		t.Fatal("expected paging.next")
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/objects/employees?limit=2&after="+page.Paging.Next.After, "")
	var rest []domain.Object
	next := api.CollectionResponse{Results: &rest}
	decode(t, resp, &next)
	if len(rest) != 1 || next.Paging != nil {
		t.Errorf("second page = %d results, paging %+v", len(rest), next.Paging)
	}
}

func TestBatchCreateLimits(t *testing.T) {
	srv := setupServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/objects/employees/batch/create", `{"inputs":[]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty inputs: status = %d, want 400", resp.StatusCode)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"inputs":[`)
	for i := 0; i < 101; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"properties":{"n":"x"}}`)
	}
	buf.WriteString(`]}`)
	resp = do(t, http.MethodPost, srv.URL+"/v1/objects/employees/batch/create", buf.String())
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("oversized batch: status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateAndArchive(t *testing.T) {
	srv := setupServer(t)
	created := createEmployee(t, srv, `{"name":"Ada","salary":"100000"}`)
	url := srv.URL + "/v1/objects/employees/" + created.ID

	resp := do(t, http.MethodPatch, url, `{"properties":{"salary":"120000"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d", resp.StatusCode)
	}
	var updated domain.Object
	decode(t, resp, &updated)
	if updated.Properties["salary"] != "120000" || updated.Properties["name"] != "Ada" {
		t.Errorf("properties = %v", updated.Properties)
	}

	if resp := do(t, http.MethodPatch, url, `{"properties":{}}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty update: status = %d, want 400", resp.StatusCode)
	}

	if resp := do(t, http.MethodDelete, url, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("archive: status %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, url, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second archive: status = %d, want 404", resp.StatusCode)
	}
}
