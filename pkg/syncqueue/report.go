package syncqueue

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Kind is the outcome of delivering one entry
type Kind int

const (
	KindDelivered Kind = iota
	KindFailed
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindDelivered:
		return "delivered"
	case KindFailed:
		return "failed"
	case KindExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// SkipReason tells why a drain did not attempt any delivery
type SkipReason string

const (
	SkipOffline  SkipReason = "offline"
	SkipInFlight SkipReason = "in_flight"
	SkipEmpty    SkipReason = "empty"
	SkipClosed   SkipReason = "closed"
	// SkipLocal marks saves that were written locally instead of being queued
	SkipLocal SkipReason = "local"
)

type (
	Result struct {
		Key  string
		Kind Kind
		Err  error
		// Timestamp is the server acknowledgement time of a delivered entry
		Timestamp time.Time
	}
	// Report summarizes one drain
	Report struct {
		RunID     string
		Skipped   SkipReason
		Results   []Result
		Remaining int
	}
)

// Delivered reports whether the drain delivered key
func (r Report) Delivered(key string) bool {
	for _, result := range r.Results {
		if result.Key == key && result.Kind == KindDelivered {
			return true
		}
	}
	return false
}

// Err combines the errors of all failed deliveries
func (r Report) Err() error {
	var err error
	for _, result := range r.Results {
		if result.Kind == KindFailed {
			err = multierr.Append(err, errors.Wrapf(result.Err, "failed to deliver %q", result.Key))
		}
	}
	return err
}

// Flush completes when the drain started by a push or an online event returns
type Flush struct {
	done   chan struct{}
	report Report
}

func newFlush() *Flush {
	return &Flush{done: make(chan struct{})}
}

// CompletedFlush returns a flush that is already done with r
func CompletedFlush(r Report) *Flush {
	f := newFlush()
	f.complete(r)
	return f
}

func (f *Flush) Done() <-chan struct{} {
	return f.done
}

// Report returns the drain report, it is empty until Done is closed
func (f *Flush) Report() Report {
	select {
	case <-f.done:
		return f.report
	default:
		return Report{}
	}
}

// Wait blocks until the drain returned or ctx is done
func (f *Flush) Wait(ctx context.Context) (Report, error) {
	select {
	case <-f.done:
		return f.report, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

func (f *Flush) complete(r Report) {
	f.report = r
	close(f.done)
}
