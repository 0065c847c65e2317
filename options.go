package container

import "log/slog"

// Option configures a builder and the container it builds.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	observer  Observer
	activator *Activator
	callSites bool
}

func defaultOptions() options {
	return options{
		logger:    slog.New(slog.DiscardHandler),
		observer:  NopObserver{},
		activator: defaultActivator,
	}
}

// WithLogger sets the logger for build, eager resolution and disposal records.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver attaches a diagnostics observer.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithActivator replaces the process-wide activator, e.g. to use a custom
// Inspector or Allocator.
func WithActivator(a *Activator) Option {
	return func(o *options) {
		if a != nil {
			o.activator = a
		}
	}
}

// WithCallSites records the file and line of every binding commit.
func WithCallSites() Option {
	return func(o *options) { o.callSites = true }
}
