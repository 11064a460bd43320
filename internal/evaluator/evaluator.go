// Package evaluator implements the alert evaluation engine. It turns
// threshold breaches into deduplicated alert history rows and hands
// trigger/resolution events to the notification dispatcher.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/calm-green-owl/pulsewatch/internal/metrics"
	"github.com/calm-green-owl/pulsewatch/internal/metricsource"
	"github.com/calm-green-owl/pulsewatch/internal/models"
	"github.com/calm-green-owl/pulsewatch/internal/notifier"
	"github.com/calm-green-owl/pulsewatch/internal/storage"
)

// equalityEpsilon is the absolute tolerance used by the == operator to avoid
// floating-point false negatives.
const equalityEpsilon = 0.001

// Compare applies op to (value, threshold). Unknown operators compare false;
// the caller is responsible for rejecting them at config-load time.
func Compare(value, threshold float64, op models.Operator) bool {
	switch op {
	case models.OpGreater:
		return value > threshold
	case models.OpLess:
		return value < threshold
	case models.OpGreaterEqual:
		return value >= threshold
	case models.OpLessEqual:
		return value <= threshold
	case models.OpEqual:
		diff := value - threshold
		if diff < 0 {
			diff = -diff
		}
		return diff < equalityEpsilon
	default:
		return false
	}
}

// FormatMessage renders the alert message for a breach of cfg at value.
func FormatMessage(cfg *models.AlertConfig, value float64) string {
	return fmt.Sprintf("%s - %s: %.2f %s %.2f",
		cfg.ServiceName, cfg.MetricType, value, cfg.Operator, cfg.ThresholdValue,
	) + cfg.ThresholdKind.MessageSuffix()
}

// Dispatcher delivers a notification event and reports whether any channel
// succeeded.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *notifier.Event) bool
}

// Result reports the outcome of evaluating one alert config.
type Result struct {
	Suppressed  bool
	Triggered   bool
	Resolved    bool
	MetricValue float64
}

// BatchStats aggregates the outcomes of one EvaluateAll pass.
type BatchStats struct {
	Evaluated  int
	Triggered  int
	Resolved   int
	Suppressed int
	Errors     int
}

// Options configures the engine.
type Options struct {
	// Workers bounds concurrent per-config evaluation in EvaluateAll.
	// Values below 2 evaluate sequentially. Concurrent evaluation is safe
	// because the store enforces at most one active history row per config.
	Workers int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Engine evaluates alert configurations against the metrics provider and
// drives the per-config state machine.
type Engine struct {
	configs    storage.AlertConfigRepository
	history    storage.AlertHistoryRepository
	source     metricsource.Source
	dispatcher Dispatcher
	workers    int
	now        func() time.Time
}

// New creates an evaluation engine.
func New(configs storage.AlertConfigRepository, history storage.AlertHistoryRepository,
	source metricsource.Source, dispatcher Dispatcher, opts *Options) *Engine {

	e := &Engine{
		configs:    configs,
		history:    history,
		source:     source,
		dispatcher: dispatcher,
		workers:    1,
		now:        time.Now,
	}
	if opts != nil {
		if opts.Workers > 1 {
			e.workers = opts.Workers
		}
		if opts.Now != nil {
			e.now = opts.Now
		}
	}
	return e
}

// EvaluateAll loads all enabled alert configs and evaluates each one
// independently. A failure on one config is counted and logged but never
// stops the remaining configs.
func (e *Engine) EvaluateAll(ctx context.Context) (BatchStats, error) {
	start := e.now()

	configs, err := e.configs.ListEnabled(ctx)
	if err != nil {
		return BatchStats{}, fmt.Errorf("list enabled alert configs: %w", err)
	}

	var mu sync.Mutex
	stats := BatchStats{Evaluated: len(configs)}

	record := func(cfg *models.AlertConfig, result Result, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			stats.Errors++
			log.Printf("error: evaluating alert config %s (%s): %v", cfg.ID, cfg.Name, err)
		case result.Suppressed:
			stats.Suppressed++
		case result.Triggered:
			stats.Triggered++
		case result.Resolved:
			stats.Resolved++
		}
	}

	if e.workers > 1 {
		var g errgroup.Group
		g.SetLimit(e.workers)
		for _, cfg := range configs {
			cfg := cfg
			g.Go(func() error {
				result, err := e.Evaluate(ctx, cfg)
				record(cfg, result, err)
				return nil
			})
		}
		g.Wait()
	} else {
		for _, cfg := range configs {
			result, err := e.Evaluate(ctx, cfg)
			record(cfg, result, err)
		}
	}

	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	return stats, nil
}

// Evaluate runs one evaluation cycle for a single alert config: suppression
// check, metric fetch, threshold comparison, then the trigger or resolve
// transition.
func (e *Engine) Evaluate(ctx context.Context, cfg *models.AlertConfig) (Result, error) {
	now := e.now()

	// Suppression short-circuits everything: no metric fetch, no state
	// change, no notification, regardless of current state.
	if cfg.SuppressedAt(now) {
		metrics.EvaluationsTotal.WithLabelValues(metrics.OutcomeSuppressed).Inc()
		return Result{Suppressed: true}, nil
	}

	value, ok, err := e.source.Value(ctx, cfg.ServiceName, cfg.MetricType, cfg.EvaluationWindow)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return Result{}, fmt.Errorf("fetch metric %s/%s: %w", cfg.ServiceName, cfg.MetricType, err)
	}
	if !ok {
		// Transient; the next scheduled pass is expected to find data.
		log.Printf("warning: no metric data for %s/%s (window %s), skipping alert %q",
			cfg.ServiceName, cfg.MetricType, cfg.EvaluationWindow, cfg.Name)
		metrics.EvaluationsTotal.WithLabelValues(metrics.OutcomeNoData).Inc()
		return Result{}, nil
	}

	if !cfg.Operator.Valid() {
		log.Printf("error: unknown comparison operator %q on alert config %s", cfg.Operator, cfg.ID)
	}

	if Compare(value, cfg.ThresholdValue, cfg.Operator) {
		return e.trigger(ctx, cfg, value, now)
	}
	return e.resolve(ctx, cfg, value, now)
}

// trigger moves a config from NORMAL to ACTIVE. Re-triggering an
// already-active condition is an idempotent no-op.
func (e *Engine) trigger(ctx context.Context, cfg *models.AlertConfig, value float64, now time.Time) (Result, error) {
	active, err := e.history.GetActive(ctx, cfg.ID)
	if err != nil {
		return Result{}, fmt.Errorf("get active alert: %w", err)
	}
	if active != nil {
		metrics.EvaluationsTotal.WithLabelValues(metrics.OutcomeUnchanged).Inc()
		return Result{MetricValue: value}, nil
	}

	h := models.NewAlertHistory(cfg, value, FormatMessage(cfg, value), now)
	if err := e.history.CreateActive(ctx, h); err != nil {
		if errors.Is(err, storage.ErrActiveAlertExists) {
			// A concurrent pass already recorded this breach.
			metrics.EvaluationsTotal.WithLabelValues(metrics.OutcomeUnchanged).Inc()
			return Result{MetricValue: value}, nil
		}
		return Result{}, fmt.Errorf("create alert history: %w", err)
	}

	// The row is durable before any notification is attempted, so a
	// delivery failure never loses the alert.
	if e.dispatcher != nil {
		ev := &notifier.Event{
			Kind:      notifier.EventAlert,
			Config:    cfg,
			History:   h,
			Timestamp: now,
		}
		if e.dispatcher.Dispatch(ctx, ev) {
			h.NotificationSent = true
			if err := e.history.MarkNotified(ctx, h.ID); err != nil {
				log.Printf("warning: mark alert history %s notified: %v", h.ID, err)
			}
		}
	}

	metrics.EvaluationsTotal.WithLabelValues(metrics.OutcomeTriggered).Inc()
	metrics.ActiveAlerts.Inc()
	return Result{Triggered: true, MetricValue: value}, nil
}

// resolve moves a config from ACTIVE back to NORMAL. With no active alert
// there is nothing to resolve.
func (e *Engine) resolve(ctx context.Context, cfg *models.AlertConfig, value float64, now time.Time) (Result, error) {
	active, err := e.history.GetActive(ctx, cfg.ID)
	if err != nil {
		return Result{}, fmt.Errorf("get active alert: %w", err)
	}
	if active == nil {
		metrics.EvaluationsTotal.WithLabelValues(metrics.OutcomeUnchanged).Inc()
		return Result{MetricValue: value}, nil
	}

	if err := e.history.MarkResolved(ctx, active.ID, now, models.ResolutionAuto); err != nil {
		return Result{}, fmt.Errorf("mark alert resolved: %w", err)
	}
	resolvedAt := now
	active.ResolvedAt = &resolvedAt
	active.ResolutionMethod = models.ResolutionAuto

	if e.dispatcher != nil {
		ev := &notifier.Event{
			Kind:      notifier.EventResolved,
			Config:    cfg,
			History:   active,
			Timestamp: now,
		}
		e.dispatcher.Dispatch(ctx, ev)
	}

	metrics.EvaluationsTotal.WithLabelValues(metrics.OutcomeResolved).Inc()
	metrics.ActiveAlerts.Dec()
	return Result{Resolved: true, MetricValue: value}, nil
}
