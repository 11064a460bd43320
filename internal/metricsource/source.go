// Package metricsource defines the metrics provider contract consumed by the
// alert evaluator, plus the built-in implementations.
package metricsource

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Source supplies one aggregated value per (service, metric, window) query.
//
// "No data" is an expected, frequent outcome and is reported through the ok
// return rather than an error: (0, false, nil) means the provider has no
// samples for the window and the caller should skip this evaluation cycle.
type Source interface {
	Value(ctx context.Context, service, metric string, window time.Duration) (value float64, ok bool, err error)
}

// StaticSource is an in-memory Source for tests and local development.
type StaticSource struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewStaticSource creates an empty StaticSource.
func NewStaticSource() *StaticSource {
	return &StaticSource{values: make(map[string]float64)}
}

// Set records the value returned for a (service, metric) pair.
func (s *StaticSource) Set(service, metric string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[staticKey(service, metric)] = value
}

// Clear removes the value for a (service, metric) pair, making subsequent
// queries report no data.
func (s *StaticSource) Clear(service, metric string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, staticKey(service, metric))
}

// Value implements Source. The window is ignored.
func (s *StaticSource) Value(_ context.Context, service, metric string, _ time.Duration) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[staticKey(service, metric)]
	return v, ok, nil
}

func staticKey(service, metric string) string {
	return fmt.Sprintf("%s/%s", service, metric)
}
