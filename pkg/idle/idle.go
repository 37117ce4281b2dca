// Package idle shuts the storage server down once nobody has been around for a while.
// The dashboard sends heartbeats while it is open; every heartbeat resets the watchdog.
package idle

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrIdle is returned by Run once the timeout elapsed without a reset
var ErrIdle = errors.New("idle timeout reached")

type Watchdog struct {
	l       *zap.Logger
	timeout time.Duration
	resetC  chan struct{}
}

// New returns a watchdog firing after timeout without Reset, a timeout <= 0 disables it
func New(l *zap.Logger, timeout time.Duration) *Watchdog {
	return &Watchdog{
		l:       l.Named("idle"),
		timeout: timeout,
		resetC:  make(chan struct{}, 1),
	}
}

func (w *Watchdog) Enabled() bool {
	return w.timeout > 0
}

// Reset postpones the idle timeout, it never blocks
func (w *Watchdog) Reset() {
	select {
	case w.resetC <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done (nil) or the watchdog was not reset for the timeout (ErrIdle)
func (w *Watchdog) Run(ctx context.Context) error {
	if !w.Enabled() {
		<-ctx.Done()
		return nil
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.resetC:
			timer.Reset(w.timeout)
		case <-timer.C:
			w.l.Info("no heartbeat received", zap.Duration("timeout", w.timeout))
			return ErrIdle
		}
	}
}
