package schedules

import (
	"net/http"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/notify"
	"github.com/johnwards/insights/internal/schedule"
)

// RegisterRoutes adds the schedule and cron endpoints to the given mux. runs
// may be nil, in which case run history is always empty.
func RegisterRoutes(mux *http.ServeMux, s *schedule.Scheduler, src aggregate.Source, n notify.Notifier, runs RunLister) {
	h := &Handler{scheduler: s, src: src, notifier: n, runs: runs}

	mux.HandleFunc("GET /v1/schedules", h.List)
	mux.HandleFunc("POST /v1/schedules", h.Create)
	mux.HandleFunc("GET /v1/schedules/due", h.Due)
	mux.HandleFunc("POST /v1/schedules/run-due", h.RunDue)
	mux.HandleFunc("GET /v1/schedules/{id}", h.Get)
	mux.HandleFunc("DELETE /v1/schedules/{id}", h.Delete)
	mux.HandleFunc("POST /v1/schedules/{id}/enable", h.Enable)
	mux.HandleFunc("POST /v1/schedules/{id}/disable", h.Disable)
	mux.HandleFunc("GET /v1/schedules/{id}/runs", h.Runs)
	mux.HandleFunc("GET /v1/cron/next", h.CronNext)
}
