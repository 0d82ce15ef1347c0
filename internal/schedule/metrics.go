package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scheduleRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "insights_schedule_runs_total",
	Help: "Scheduled report executions by result (ok, error)",
}, []string{"result"})
