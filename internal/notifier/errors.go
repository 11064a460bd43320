package notifier

import (
	"errors"
	"fmt"

	"github.com/calm-green-owl/pulsewatch/internal/models"
)

// ErrSkipped is returned by a notifier that declines an event by policy,
// e.g. SMS for a non-critical severity. The dispatcher treats it as neither
// success nor failure.
var ErrSkipped = errors.New("notification skipped")

// ErrSMSNotConfigured is returned when an SMS send is attempted without
// provider credentials. Per-recipient delivery failures are reported as data
// in SMSResult, never as an error.
var ErrSMSNotConfigured = errors.New("sms channel is not configured")

// ChannelError reports that a channel's delivery failed permanently after
// its retry budget was exhausted.
type ChannelError struct {
	Channel  models.Channel
	Attempts int
	Err      error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s notification failed after %d attempts: %v", e.Channel, e.Attempts, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
