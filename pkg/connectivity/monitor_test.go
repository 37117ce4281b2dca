package connectivity_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foomo/receptionsuite/client"
	"github.com/foomo/receptionsuite/pkg/connectivity"
	"github.com/foomo/receptionsuite/pkg/repo/mock"
	"github.com/foomo/receptionsuite/responses"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type prober struct {
	alive atomic.Bool
	calls atomic.Int32
}

func (p *prober) Heartbeat(ctx context.Context) (*responses.Heartbeat, error) {
	p.calls.Add(1)
	if !p.alive.Load() {
		return nil, errors.New("connection refused")
	}
	return &responses.Heartbeat{Alive: true, Timestamp: time.Now()}, nil
}

func TestProbeTransitions(t *testing.T) {
	p := &prober{}
	m := connectivity.New(zaptest.NewLogger(t), p)

	var restored atomic.Int32
	m.OnOnline(func() {
		restored.Add(1)
	})

	assert.False(t, m.Online())
	assert.False(t, m.Probe(context.Background()))
	assert.Zero(t, restored.Load())

	p.alive.Store(true)
	assert.True(t, m.Probe(context.Background()))
	assert.True(t, m.Probe(context.Background()))
	assert.EqualValues(t, 1, restored.Load())

	p.alive.Store(false)
	assert.False(t, m.Probe(context.Background()))
	p.alive.Store(true)
	assert.True(t, m.Probe(context.Background()))
	assert.EqualValues(t, 2, restored.Load())
}

func TestSetOnline(t *testing.T) {
	m := connectivity.New(zaptest.NewLogger(t), &prober{})

	var restored atomic.Int32
	m.OnOnline(func() {
		restored.Add(1)
	})
	m.SetOnline(true)
	m.SetOnline(true)
	assert.True(t, m.Online())
	assert.EqualValues(t, 1, restored.Load())
}

func TestRun(t *testing.T) {
	p := &prober{}
	m := connectivity.New(zaptest.NewLogger(t), p, connectivity.WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	p.alive.Store(true)
	assert.Eventually(t, m.Online, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, p.calls.Load(), int32(1))

	cancel()
	require.NoError(t, <-done)
}

func TestProbeStorageServer(t *testing.T) {
	_, api := mock.NewServer(t)
	c, err := client.NewHTTPClient(api)
	require.NoError(t, err)
	defer c.Shutdown()

	m := connectivity.New(zaptest.NewLogger(t), c, connectivity.WithTimeout(time.Second))
	assert.True(t, m.Probe(context.Background()))

	unreachable, err := client.NewHTTPClient("http://127.0.0.1:1/api")
	require.NoError(t, err)
	m = connectivity.New(zaptest.NewLogger(t), unreachable, connectivity.WithTimeout(time.Second))
	assert.False(t, m.Probe(context.Background()))
}
