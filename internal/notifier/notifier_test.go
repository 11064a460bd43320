package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/calm-green-owl/pulsewatch/internal/models"
)

// fakeNotifier records sends for one channel and returns a fixed error.
type fakeNotifier struct {
	mu      sync.Mutex
	channel models.Channel
	sendErr error
	sends   int
	closed  bool
}

func (f *fakeNotifier) Name() models.Channel {
	return f.channel
}

func (f *fakeNotifier) Send(_ context.Context, _ *Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	return f.sendErr
}

func (f *fakeNotifier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeNotifier) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

func testEvent(kind EventKind, channels ...models.Channel) *Event {
	cfg := models.NewAlertConfig("high-cpu", "web-api", "cpu_usage")
	cfg.ThresholdValue = 80
	cfg.Operator = models.OpGreater
	cfg.Severity = models.SeverityCritical
	cfg.EvaluationWindow = 5 * time.Minute
	cfg.Channels = channels

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := models.NewAlertHistory(cfg, 85.5, "web-api - cpu_usage: 85.50 > 80.00", now)

	return &Event{Kind: kind, Config: cfg, History: h, Timestamp: now}
}

func TestDispatchToConfiguredChannels(t *testing.T) {
	email := &fakeNotifier{channel: models.ChannelEmail}
	slack := &fakeNotifier{channel: models.ChannelSlack}

	d := NewDispatcher()
	d.Register(email)
	d.Register(slack)

	ev := testEvent(EventAlert, models.ChannelEmail, models.ChannelSlack)
	if !d.Dispatch(context.Background(), ev) {
		t.Fatal("dispatch should report success")
	}
	if email.sendCount() != 1 || slack.sendCount() != 1 {
		t.Errorf("sends = (%d, %d), want (1, 1)", email.sendCount(), slack.sendCount())
	}
}

func TestDispatchOnlyListedChannels(t *testing.T) {
	email := &fakeNotifier{channel: models.ChannelEmail}
	slack := &fakeNotifier{channel: models.ChannelSlack}

	d := NewDispatcher()
	d.Register(email)
	d.Register(slack)

	ev := testEvent(EventAlert, models.ChannelSlack)
	d.Dispatch(context.Background(), ev)

	if email.sendCount() != 0 {
		t.Error("email is not on the config and must not be contacted")
	}
	if slack.sendCount() != 1 {
		t.Errorf("slack sends = %d, want 1", slack.sendCount())
	}
}

func TestDispatchIgnoresUnknownChannels(t *testing.T) {
	slack := &fakeNotifier{channel: models.ChannelSlack}

	d := NewDispatcher()
	d.Register(slack)

	ev := testEvent(EventAlert, "pager", models.ChannelSlack)
	if !d.Dispatch(context.Background(), ev) {
		t.Fatal("unknown channel name must not abort delivery")
	}
	if slack.sendCount() != 1 {
		t.Errorf("slack sends = %d, want 1", slack.sendCount())
	}
}

func TestDispatchIsolatesChannelFailures(t *testing.T) {
	email := &fakeNotifier{channel: models.ChannelEmail, sendErr: errors.New("smtp down")}
	slack := &fakeNotifier{channel: models.ChannelSlack}

	d := NewDispatcher()
	d.Register(email)
	d.Register(slack)

	ev := testEvent(EventAlert, models.ChannelEmail, models.ChannelSlack)
	if !d.Dispatch(context.Background(), ev) {
		t.Fatal("one channel succeeding should report success")
	}
	if slack.sendCount() != 1 {
		t.Error("slack must still be attempted after email fails")
	}
}

func TestDispatchAllChannelsFail(t *testing.T) {
	email := &fakeNotifier{channel: models.ChannelEmail, sendErr: errors.New("smtp down")}

	d := NewDispatcher()
	d.Register(email)

	ev := testEvent(EventAlert, models.ChannelEmail)
	if d.Dispatch(context.Background(), ev) {
		t.Error("dispatch should report failure when every channel fails")
	}
}

func TestDispatchSkippedIsNotSuccess(t *testing.T) {
	sms := &fakeNotifier{channel: models.ChannelSMS, sendErr: ErrSkipped}

	d := NewDispatcher()
	d.Register(sms)

	ev := testEvent(EventAlert, models.ChannelSMS)
	if d.Dispatch(context.Background(), ev) {
		t.Error("a policy skip must not count as a delivery success")
	}
}

func TestDispatchResolutionSkipsSMS(t *testing.T) {
	sms := &fakeNotifier{channel: models.ChannelSMS}
	email := &fakeNotifier{channel: models.ChannelEmail}

	d := NewDispatcher()
	d.Register(sms)
	d.Register(email)

	ev := testEvent(EventResolved, models.ChannelEmail, models.ChannelSMS)
	if !d.Dispatch(context.Background(), ev) {
		t.Fatal("dispatch should report success via email")
	}
	if sms.sendCount() != 0 {
		t.Error("resolution notices must never reach the sms channel")
	}
	if email.sendCount() != 1 {
		t.Errorf("email sends = %d, want 1", email.sendCount())
	}
}

func TestDispatchNoChannels(t *testing.T) {
	d := NewDispatcher()
	d.Register(&fakeNotifier{channel: models.ChannelEmail})

	ev := testEvent(EventAlert)
	if d.Dispatch(context.Background(), ev) {
		t.Error("an event with no channels has nothing to deliver")
	}
}

func TestDispatchRateLimit(t *testing.T) {
	email := &fakeNotifier{channel: models.ChannelEmail}

	d := NewDispatcherWithLimit(1, 1)
	d.Register(email)

	ev := testEvent(EventAlert, models.ChannelEmail)
	if !d.Dispatch(context.Background(), ev) {
		t.Fatal("first event should pass the limiter")
	}
	if d.Dispatch(context.Background(), ev) {
		t.Error("second event should be dropped by the limiter")
	}
	if email.sendCount() != 1 {
		t.Errorf("sends = %d, want 1", email.sendCount())
	}
	if dropped := d.Dropped(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestDispatcherUnregister(t *testing.T) {
	email := &fakeNotifier{channel: models.ChannelEmail}

	d := NewDispatcher()
	d.Register(email)
	d.Unregister(models.ChannelEmail)

	ev := testEvent(EventAlert, models.ChannelEmail)
	if d.Dispatch(context.Background(), ev) {
		t.Error("unregistered channel should not deliver")
	}
	if email.sendCount() != 0 {
		t.Error("unregistered notifier must not be contacted")
	}
}

func TestDispatcherClose(t *testing.T) {
	email := &fakeNotifier{channel: models.ChannelEmail}
	slack := &fakeNotifier{channel: models.ChannelSlack}

	d := NewDispatcher()
	d.Register(email)
	d.Register(slack)

	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !email.closed || !slack.closed {
		t.Error("all notifiers should be closed")
	}
}

func TestChannelErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &ChannelError{Channel: models.ChannelSlack, Attempts: 3, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("ChannelError should unwrap to the underlying error")
	}
	msg := err.Error()
	if msg != "slack notification failed after 3 attempts: connection refused" {
		t.Errorf("message = %q", msg)
	}
}
