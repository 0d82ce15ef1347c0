package dashboards_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/api"
	"github.com/johnwards/insights/internal/api/dashboards"
	"github.com/johnwards/insights/internal/dashboard"
	"github.com/johnwards/insights/internal/domain"
	"github.com/johnwards/insights/internal/report"
)

const wonDeals = `{"objectName":"deals","stages":[{"type":"match","body":{"stage":"won"}},{"type":"count","body":{"as":"n"}}]}`

func setupServer(t *testing.T, opts ...dashboard.Option) *httptest.Server {
	t.Helper()
	src := aggregate.NewStaticSource(map[string][]domain.Record{
		"deals": {
			{"name": "A", "stage": "won", "amount": 500.0},
			{"name": "B", "stage": "lost", "amount": 200.0},
			{"name": "C", "stage": "won", "amount": 300.0},
		},
	})
	engine := aggregate.New()
	reports := report.NewManager(engine)
	var stages []domain.Stage
	if err := json.Unmarshal([]byte(`[{"type":"group","body":{"_id":"$stage","total":{"$sum":"$amount"}}},{"type":"sort","body":{"_id":1}}]`), &stages); err != nil {
		t.Fatalf("decode stages: %v", err)
	}
	if _, err := reports.Create(&domain.Report{ID: "by-stage", Name: "By stage", ObjectName: "deals", Stages: stages}); err != nil {
		t.Fatalf("create report: %v", err)
	}

	mux := http.NewServeMux()
	dashboards.RegisterRoutes(mux, dashboard.NewManager(engine, reports, opts...), src)

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

func createDashboard(t *testing.T, srv *httptest.Server, body string) domain.Dashboard {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/v1/dashboards", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create dashboard: status %d", resp.StatusCode)
	}
	var d domain.Dashboard
	decode(t, resp, &d)
	return d
}

func salesDashboard(t *testing.T, srv *httptest.Server) domain.Dashboard {
	return createDashboard(t, srv, `{"id":"sales","name":"Sales","owner":"alice","widgets":[
		{"id":"won","type":"metric","pipeline":`+wonDeals+`},
		{"id":"stages","type":"bar","reportId":"by-stage"}
	]}`)
}

func TestCreateAndGet(t *testing.T) {
	srv := setupServer(t)
	created := salesDashboard(t, srv)
	if len(created.Widgets) != 2 || created.CreatedAt.IsZero() {
		t.Fatalf("created = %+v", created)
	}

	resp := do(t, http.MethodGet, srv.URL+"/v1/dashboards/sales", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}
	var got domain.Dashboard
	decode(t, resp, &got)
	if got.Owner != "alice" || got.Widgets[1].ReportID != "by-stage" {
		t.Errorf("got %+v", got)
	}

	if resp := do(t, http.MethodGet, srv.URL+"/v1/dashboards/nope", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get missing: status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateValidation(t *testing.T) {
	srv := setupServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"missing owner", `{"name":"x"}`, http.StatusBadRequest, "owner"},
		{"widget without source", `{"name":"x","owner":"a","widgets":[{"type":"metric"}]}`, http.StatusBadRequest, "widgets[0].pipeline"},
		{"widget with both sources", `{"name":"x","owner":"a","widgets":[{"type":"metric","reportId":"by-stage","pipeline":` + wonDeals + `}]}`, http.StatusBadRequest, "widgets[0].pipeline"},
		{"duplicate widget", `{"name":"x","owner":"a","widgets":[{"id":"w","type":"m","reportId":"by-stage"},{"id":"w","type":"m","reportId":"by-stage"}]}`, http.StatusConflict, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/v1/dashboards", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.field == "" {
				return
			}
			var e api.Error
			decode(t, resp, &e)
			if len(e.Errors) != 1 || e.Errors[0].In != tt.field {
				t.Errorf("errors = %+v, want field %q", e.Errors, tt.field)
			}
		})
	}
}

func TestListByUser(t *testing.T) {
	srv := setupServer(t)
	createDashboard(t, srv, `{"id":"a","name":"A","owner":"alice"}`)
	createDashboard(t, srv, `{"id":"b","name":"B","owner":"bob"}`)
	createDashboard(t, srv, `{"id":"c","name":"C","owner":"bob","shared":true}`)

	tests := []struct {
		user string
		want []string
	}{
		{"", []string{"a", "b", "c"}},
		{"alice", []string{"a", "c"}},
		{"bob", []string{"b", "c"}},
		{"carol", []string{"c"}},
	}
	for _, tt := range tests {
		resp := do(t, http.MethodGet, srv.URL+"/v1/dashboards?userId="+tt.user, "")
		var results []domain.Dashboard
		decode(t, resp, &api.CollectionResponse{Results: &results})
		if len(results) != len(tt.want) {
			t.Fatalf("user %q: got %d dashboards, want %v", tt.user, len(results), tt.want)
		}
		for i, d := range results {
			if d.ID != tt.want[i] {
				t.Errorf("user %q: results[%d] = %q, want %q", tt.user, i, d.ID, tt.want[i])
			}
		}
	}
}

func TestUpdateAndDelete(t *testing.T) {
	srv := setupServer(t)
	salesDashboard(t, srv)

	resp := do(t, http.MethodPatch, srv.URL+"/v1/dashboards/sales", `{"name":"Revenue","shared":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d", resp.StatusCode)
	}
	var updated domain.Dashboard
	decode(t, resp, &updated)
	if updated.Name != "Revenue" || !updated.Shared || len(updated.Widgets) != 2 {
		t.Errorf("updated = %+v", updated)
	}

	if resp := do(t, http.MethodDelete, srv.URL+"/v1/dashboards/sales", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, srv.URL+"/v1/dashboards/sales", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", resp.StatusCode)
	}
}

func TestWidgetLifecycle(t *testing.T) {
	srv := setupServer(t)
	createDashboard(t, srv, `{"id":"d","name":"D","owner":"alice"}`)
	base := srv.URL + "/v1/dashboards/d/widgets"

	resp := do(t, http.MethodPost, base, `{"type":"metric","pipeline":`+wonDeals+`}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add widget: status %d", resp.StatusCode)
	}
	var added domain.Widget
	decode(t, resp, &added)
	if added.ID == "" {
		t.Fatal("expected generated widget id")
	}

	resp = do(t, http.MethodPatch, base+"/"+added.ID, `{"reportId":"by-stage","title":"Stages"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update widget: status %d", resp.StatusCode)
	}
	var updated domain.Widget
	decode(t, resp, &updated)
	if updated.Pipeline != nil || updated.ReportID != "by-stage" || updated.Title != "Stages" {
		t.Errorf("updated = %+v", updated)
	}

	if resp := do(t, http.MethodPatch, base+"/missing", `{"title":"x"}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("update missing widget: status = %d, want 404", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, base+"/"+added.ID, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("remove widget: status %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, base+"/"+added.ID, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second remove: status = %d, want 404", resp.StatusCode)
	}
}

func TestExecuteWidget(t *testing.T) {
	srv := setupServer(t)
	salesDashboard(t, srv)

	resp := do(t, http.MethodPost, srv.URL+"/v1/dashboards/sales/widgets/won/execute", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("execute inline: status %d", resp.StatusCode)
	}
	var inline domain.WidgetResult
	decode(t, resp, &inline)
	if len(inline.Data) != 1 || inline.Data[0]["n"] != 2.0 {
		t.Errorf("inline data = %v", inline.Data)
	}

	resp = do(t, http.MethodPost, srv.URL+"/v1/dashboards/sales/widgets/stages/execute", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("execute report: status %d", resp.StatusCode)
	}
	var byReport domain.WidgetResult
	decode(t, resp, &byReport)
	if len(byReport.Data) != 2 || byReport.Data[0]["_id"] != "lost" || byReport.Data[1]["total"] != 800.0 {
		t.Errorf("report data = %v", byReport.Data)
	}
}

func TestExecuteDashboard(t *testing.T) {
	srv := setupServer(t)
	salesDashboard(t, srv)

	resp := do(t, http.MethodPost, srv.URL+"/v1/dashboards/sales/execute", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("execute: status %d", resp.StatusCode)
	}
	var got struct {
		DashboardID string                         `json:"dashboardId"`
		Widgets     map[string]domain.WidgetResult `json:"widgets"`
	}
	decode(t, resp, &got)
	if got.DashboardID != "sales" || len(got.Widgets) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.Widgets["won"].Data[0]["n"] != 2.0 {
		t.Errorf("won = %v", got.Widgets["won"].Data)
	}
}

func TestExecuteDashboardPolicies(t *testing.T) {
	body := `{"id":"mixed","name":"Mixed","owner":"alice","widgets":[
		{"id":"ok","type":"metric","pipeline":` + wonDeals + `},
		{"id":"dangling","type":"metric","reportId":"deleted-report"}
	]}`

	t.Run("fail fast", func(t *testing.T) {
		srv := setupServer(t)
		createDashboard(t, srv, body)
		resp := do(t, http.MethodPost, srv.URL+"/v1/dashboards/mixed/execute", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("isolate", func(t *testing.T) {
		srv := setupServer(t, dashboard.WithFailurePolicy(domain.Isolate))
		createDashboard(t, srv, body)
		resp := do(t, http.MethodPost, srv.URL+"/v1/dashboards/mixed/execute", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var got struct {
			Widgets map[string]domain.WidgetResult `json:"widgets"`
		}
		decode(t, resp, &got)
		if got.Widgets["ok"].Error != "" || got.Widgets["dangling"].Error == "" {
			t.Errorf("widgets = %+v", got.Widgets)
		}
	})
}
