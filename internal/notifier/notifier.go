// Package notifier provides notification dispatching for alerts.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/calm-green-owl/pulsewatch/internal/metrics"
	"github.com/calm-green-owl/pulsewatch/internal/models"
)

// EventKind distinguishes trigger notifications from resolution notifications.
type EventKind string

const (
	// EventAlert announces a new breach.
	EventAlert EventKind = "alert"
	// EventResolved announces that a previously-active breach cleared.
	EventResolved EventKind = "resolved"
)

// Event carries everything a channel needs to render a notification.
type Event struct {
	Kind      EventKind
	Config    *models.AlertConfig
	History   *models.AlertHistory
	Timestamp time.Time
}

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Name returns the channel this notifier serves.
	Name() models.Channel
	// Send delivers one notification. Returning ErrSkipped means the
	// notifier declined by policy; it counts as neither success nor failure.
	Send(ctx context.Context, ev *Event) error
	// Close releases any resources.
	Close() error
}

// Dispatcher routes events to the channels listed on the alert config,
// isolating each channel's failure from the others.
type Dispatcher struct {
	mu        sync.RWMutex
	notifiers map[models.Channel]Notifier
	limiter   *rate.Limiter
	dropped   atomic.Int64
}

// NewDispatcher creates a dispatcher without rate limiting.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		notifiers: make(map[models.Channel]Notifier),
	}
}

// NewDispatcherWithLimit creates a dispatcher that drops events beyond
// eventsPerMinute, allowing bursts up to burst.
func NewDispatcherWithLimit(eventsPerMinute, burst int) *Dispatcher {
	d := NewDispatcher()
	if eventsPerMinute > 0 {
		if burst <= 0 {
			burst = eventsPerMinute
		}
		d.limiter = rate.NewLimiter(rate.Limit(float64(eventsPerMinute)/60.0), burst)
	}
	return d
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Name()] = n
}

// Unregister removes a notifier from the dispatcher.
func (d *Dispatcher) Unregister(ch models.Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.notifiers, ch)
}

// Get returns a notifier by channel.
func (d *Dispatcher) Get(ch models.Channel) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifiers[ch]
	return n, ok
}

// Dispatch sends the event on every channel listed on ev.Config for which a
// notifier is registered. Unrecognized channel names are ignored; a failure
// on one channel does not abort delivery on the remaining channels; SMS
// never carries resolution notices. Returns true if at least one channel
// reported success.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) bool {
	if ev.Config == nil || len(ev.Config.Channels) == 0 {
		return false
	}

	if d.limiter != nil && !d.limiter.Allow() {
		dropped := d.dropped.Add(1)
		metrics.NotificationsDropped.Inc()
		log.Printf("warning: notification rate limit exceeded, dropped event for alert %q (%d dropped total)",
			ev.Config.Name, dropped)
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	sent := false
	for _, ch := range ev.Config.Channels {
		if ev.Kind == EventResolved && ch == models.ChannelSMS {
			continue
		}
		n, ok := d.notifiers[ch]
		if !ok {
			continue
		}
		err := n.Send(ctx, ev)
		switch {
		case errors.Is(err, ErrSkipped):
			// Channel policy declined the event; not a delivery outcome.
		case err != nil:
			metrics.NotificationsTotal.WithLabelValues(string(ch), "failure").Inc()
			log.Printf("error: %s notification failed for alert %q: %v", ch, ev.Config.Name, err)
		default:
			metrics.NotificationsTotal.WithLabelValues(string(ch), "success").Inc()
			sent = true
		}
	}

	return sent
}

// Dropped returns the number of events dropped by the rate limiter.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for ch, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		}
	}
	d.notifiers = make(map[models.Channel]Notifier)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
