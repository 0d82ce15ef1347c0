package aggregate

import (
	"context"
	"log/slog"
	"time"

	"github.com/johnwards/insights/internal/domain"
)

// Engine validates and executes pipelines.
type Engine struct {
	maxStages int
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxStages caps the number of stages a pipeline may have. n <= 0
// removes the cap.
func WithMaxStages(n int) Option {
	return func(e *Engine) { e.maxStages = n }
}

// WithClock overrides the clock used for execution timing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxStages returns the configured stage ceiling (0 = unbounded).
func (e *Engine) MaxStages() int { return e.maxStages }

// Validate checks the pipeline shape against the engine's stage ceiling.
func (e *Engine) Validate(p domain.Pipeline) error {
	return ValidatePipeline(p, e.maxStages)
}

// Check validates p and compiles every stage body, reporting the first
// malformed body. It does not fetch data.
func (e *Engine) Check(p domain.Pipeline) error {
	_, err := compile(p, e.maxStages)
	return err
}

// Execute validates and compiles p, fetches the object's records from src
// once and applies the stages in order.
func (e *Engine) Execute(ctx context.Context, p domain.Pipeline, src Source) (*domain.AggregationResult, error) {
	start := e.now()

	stages, err := compile(p, e.maxStages)
	if err != nil {
		pipelineExecutions.WithLabelValues("invalid").Inc()
		return nil, err
	}

	records, err := src.FetchRecords(ctx, p.ObjectName)
	if err != nil {
		pipelineExecutions.WithLabelValues("fetch_error").Inc()
		e.logger.Error("pipeline fetch failed", "object", p.ObjectName, "error", err)
		return nil, &domain.ExecutionError{Op: "fetch " + p.ObjectName, Err: err}
	}
	fetched := len(records)

	var columns []string
	for _, st := range stages {
		records = st.apply(records)
		columns = st.columns(columns)
	}
	if records == nil {
		records = []domain.Record{}
	}

	elapsed := e.now().Sub(start)
	pipelineExecutions.WithLabelValues("ok").Inc()
	pipelineDuration.Observe(elapsed.Seconds())
	pipelineRecords.Observe(float64(fetched))
	e.logger.Debug("pipeline executed",
		"object", p.ObjectName,
		"stages", len(stages),
		"records", fetched,
		"results", len(records),
		"duration", elapsed.String(),
	)

	return &domain.AggregationResult{
		Data:    records,
		Columns: columns,
		Metadata: domain.Metadata{
			ExecutionTimeMs:  elapsed.Milliseconds(),
			RecordsProcessed: fetched,
			StagesExecuted:   len(p.Stages),
		},
	}, nil
}
