package services

import (
	"time"

	"go.uber.org/zap"

	"communitylibrary/internal/notifications"
)

// Notifier accepts messages for asynchronous delivery.
type Notifier interface {
	Enqueue(msg notifications.Message) bool
}

type options struct {
	now      func() time.Time
	logger   *zap.Logger
	notifier Notifier
}

// Option customizes a service.
type Option func(*options)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNotifier enables event notifications.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func buildOptions(opts []Option) options {
	o := options{
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	now := o.now
	o.now = func() time.Time { return now().UTC() }
	return o
}
