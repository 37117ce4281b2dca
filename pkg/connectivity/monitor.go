package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foomo/receptionsuite/pkg/metrics"
	"github.com/foomo/receptionsuite/responses"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 5 * time.Second
)

type (
	// Prober checks whether the storage server is reachable
	Prober interface {
		Heartbeat(ctx context.Context) (*responses.Heartbeat, error)
	}
	// Monitor tracks the reachability of the storage server
	Monitor struct {
		l         *zap.Logger
		prober    Prober
		interval  time.Duration
		timeout   time.Duration
		online    atomic.Bool
		mu        sync.Mutex
		callbacks []func()
	}
	Option func(*Monitor)
)

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithInterval(v time.Duration) Option {
	return func(o *Monitor) {
		o.interval = v
	}
}

// WithTimeout bounds a single probe
func WithTimeout(v time.Duration) Option {
	return func(o *Monitor) {
		o.timeout = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// New returns a monitor that considers the server offline until the first probe succeeded
func New(l *zap.Logger, prober Prober, opts ...Option) *Monitor {
	inst := &Monitor{
		l:        l.Named("connectivity"),
		prober:   prober,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnOnline registers fn to be called on every offline to online transition
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// SetOnline updates the state and notifies the callbacks when the server came back
func (m *Monitor) SetOnline(online bool) {
	metrics.ConnectivityOnlineGauge.WithLabelValues().Set(boolToFloat(online))
	if m.online.Swap(online) == online {
		return
	}
	if !online {
		m.l.Warn("storage server unreachable")
		return
	}

	m.l.Info("storage server reachable")
	m.mu.Lock()
	callbacks := append([]func(){}, m.callbacks...)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// Probe sends one heartbeat and updates the state with its outcome
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	hb, err := m.prober.Heartbeat(ctx)
	if err != nil {
		m.l.Debug("probe failed", zap.Error(err))
	}
	online := err == nil && hb != nil && hb.Alive
	m.SetOnline(online)
	return online
}

// Run probes now and then on every interval until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			m.l.Debug("routine canceled", zap.Error(ctx.Err()))
			return nil
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
