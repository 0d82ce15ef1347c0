package aggregate

import (
	"context"
	"sync"

	"github.com/johnwards/insights/internal/domain"
)

// Source supplies the full record set of an object. The engine calls it once
// per execution and never writes back.
type Source interface {
	FetchRecords(ctx context.Context, objectName string) ([]domain.Record, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, objectName string) ([]domain.Record, error)

// FetchRecords calls f.
func (f SourceFunc) FetchRecords(ctx context.Context, objectName string) ([]domain.Record, error) {
	return f(ctx, objectName)
}

// StaticSource is an in-memory Source keyed by object name. Unknown objects
// yield an empty record set.
type StaticSource struct {
	mu      sync.RWMutex
	records map[string][]domain.Record
}

// NewStaticSource returns a StaticSource holding a copy of records.
func NewStaticSource(records map[string][]domain.Record) *StaticSource {
	s := &StaticSource{records: make(map[string][]domain.Record, len(records))}
	for name, recs := range records {
		s.Set(name, recs)
	}
	return s
}

// Set replaces the records of one object.
func (s *StaticSource) Set(objectName string, records []domain.Record) {
	cp := make([]domain.Record, len(records))
	for i, r := range records {
		cp[i] = r.Clone()
	}
	s.mu.Lock()
	s.records[objectName] = cp
	s.mu.Unlock()
}

// FetchRecords returns a copy of the object's records.
func (s *StaticSource) FetchRecords(ctx context.Context, objectName string) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.records[objectName]
	out := make([]domain.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out, nil
}
