package schedules

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/johnwards/insights/internal/aggregate"
	"github.com/johnwards/insights/internal/api"
	"github.com/johnwards/insights/internal/domain"
	"github.com/johnwards/insights/internal/notify"
	"github.com/johnwards/insights/internal/schedule"
)

// RunLister reads recorded schedule runs, newest first.
type RunLister interface {
	List(ctx context.Context, scheduleID string, limit int) ([]domain.ScheduleRun, error)
}

// Handler handles schedule HTTP requests.
type Handler struct {
	scheduler *schedule.Scheduler
	src       aggregate.Source
	notifier  notify.Notifier
	runs      RunLister
}

const maxPreview = 20

// Create handles POST /v1/schedules.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cfg domain.ScheduleConfig
	if !api.DecodeJSON(w, r, &cfg, false) {
		return
	}

	sr, err := h.scheduler.Schedule(cfg)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, sr)
}

// Get handles GET /v1/schedules/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sr, err := h.scheduler.GetSchedule(r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, sr)
}

// List handles GET /v1/schedules.
func (h *Handler) List(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: h.scheduler.ListSchedules()})
}

// Delete handles DELETE /v1/schedules/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.scheduler.Unschedule(id) {
		api.WriteDomainError(w, r, &domain.NotFoundError{Kind: "schedule", ID: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Enable handles POST /v1/schedules/{id}/enable.
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// Disable handles POST /v1/schedules/{id}/disable.
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	sr, err := h.scheduler.SetEnabled(r.PathValue("id"), enabled)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, sr)
}

// Due handles GET /v1/schedules/due. ?at= (RFC 3339) checks against a
// given instant instead of now.
func (h *Handler) Due(w http.ResponseWriter, r *http.Request) {
	at, ok := parseTime(w, r, "at")
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: h.scheduler.CheckDue(at)})
}

type runDueResponse struct {
	Executed []string `json:"executed"`
	Errors   []string `json:"errors,omitempty"`
}

// RunDue handles POST /v1/schedules/run-due. Individual schedule failures do
// not fail the request; they are listed in the response.
func (h *Handler) RunDue(w http.ResponseWriter, r *http.Request) {
	executed, err := h.scheduler.RunDue(r.Context(), h.src, h.notifier)
	resp := runDueResponse{Executed: executed}
	if err != nil {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				resp.Errors = append(resp.Errors, e.Error())
			}
		} else {
			resp.Errors = []string{err.Error()}
		}
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// Runs handles GET /v1/schedules/{id}/runs.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.scheduler.GetSchedule(id); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	runs := []domain.ScheduleRun{}
	if h.runs != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var err error
		runs, err = h.runs.List(r.Context(), id, limit)
		if err != nil {
			api.WriteDomainError(w, r, err)
			return
		}
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: runs})
}

type cronNextResponse struct {
	Expr string      `json:"expr"`
	From time.Time   `json:"from"`
	Next []time.Time `json:"next"`
}

// CronNext handles GET /v1/cron/next?expr=&from=&count=. It previews the
// next count (default 1, at most 20) run times of expr after from.
func (h *Handler) CronNext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	corrID := api.CorrelationID(r.Context())

	expr := q.Get("expr")
	if expr == "" {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("expr is required", corrID,
			[]api.ErrorDetail{{Message: "is required", Code: "REQUIRED", In: "expr"}}))
		return
	}
	from, ok := parseTime(w, r, "from")
	if !ok {
		return
	}
	count := 1
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPreview {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError(
				"count must be between 1 and "+strconv.Itoa(maxPreview), corrID,
				[]api.ErrorDetail{{Message: "out of range", Code: "INVALID", In: "count"}}))
			return
		}
		count = n
	}

	resp := cronNextResponse{Expr: expr, From: from, Next: make([]time.Time, 0, count)}
	cur := from
	for range count {
		next, err := h.scheduler.NextRun(expr, cur)
		if errors.Is(err, schedule.ErrNoNextRun) {
			break
		}
		if err != nil {
			api.WriteDomainError(w, r, err)
			return
		}
		resp.Next = append(resp.Next, next)
		cur = next
	}
	if len(resp.Next) == 0 {
		api.WriteError(w, http.StatusUnprocessableEntity, api.NewExecutionError(
			"cron expression "+strconv.Quote(expr)+" never fires", corrID))
		return
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// parseTime reads an optional RFC 3339 query parameter, defaulting to now.
func parseTime(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Now().UTC(), true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError(
			name+" must be an RFC 3339 timestamp", api.CorrelationID(r.Context()),
			[]api.ErrorDetail{{Message: err.Error(), Code: "INVALID", In: name}}))
		return time.Time{}, false
	}
	return t.UTC(), true
}
