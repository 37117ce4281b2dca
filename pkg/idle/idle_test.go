package idle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunReturnsErrIdle(t *testing.T) {
	w := New(zaptest.NewLogger(t), 20*time.Millisecond)

	start := time.Now()
	err := w.Run(context.Background())
	require.ErrorIs(t, err, ErrIdle)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestResetPostponesTimeout(t *testing.T) {
	w := New(zaptest.NewLogger(t), 100*time.Millisecond)

	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- w.Run(context.Background()) }()

	for i := 0; i < 5; i++ {
		time.Sleep(40 * time.Millisecond)
		w.Reset()
	}

	require.ErrorIs(t, <-done, ErrIdle)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestDisabledWaitsForContext(t *testing.T) {
	w := New(zaptest.NewLogger(t), 0)
	assert.False(t, w.Enabled())
	w.Reset()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Run(ctx))
}

func TestCanceledContext(t *testing.T) {
	w := New(zaptest.NewLogger(t), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
}
