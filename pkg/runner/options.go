package runner

import (
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/beamline/pkg/dispatch"
	"github.com/aretw0/beamline/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed process can keep the beamline locked.
const DefaultLockTTL = time.Hour

const abortRetryInterval = 5 * time.Millisecond

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithStore records every published document in store.
func WithStore(store ports.DocumentStore) Option {
	return func(r *Runner) {
		r.Store = store
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithLocker makes every run hold a distributed lock on key.
func WithLocker(locker ports.DistributedLocker, key string, ttl time.Duration) Option {
	return func(r *Runner) {
		r.Locker = locker
		r.LockKey = key
		if ttl > 0 {
			r.LockTTL = ttl
		}
	}
}

// WithTable prints a live table of the given fields to w.
// With no fields, every registered device is shown.
func WithTable(w io.Writer, fields ...string) Option {
	return func(r *Runner) {
		r.Output = w
		r.Fields = fields
	}
}

// WithSignals aborts the active run on SIGINT or SIGTERM.
func WithSignals(enabled bool) Option {
	return func(r *Runner) {
		r.Signals = enabled
	}
}

// WithInterruptSource aborts the active run when ch delivers or is closed.
func WithInterruptSource(ch <-chan struct{}) Option {
	return func(r *Runner) {
		r.interrupts = ch
	}
}

// WithSubscriptions adds callbacks to every run.
func WithSubscriptions(subs dispatch.Subscriptions) Option {
	return func(r *Runner) {
		for t, cbs := range subs {
			r.extra[t] = append(r.extra[t], cbs...)
		}
	}
}
