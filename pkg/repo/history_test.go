package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/foomo/receptionsuite/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"
)

// testClock returns a clock advancing one second per call
func testClock() func() time.Time {
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func testHistory(t *testing.T, opts ...HistoryOption) *History {
	t.Helper()
	s, err := storage.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)
	opts = append([]HistoryOption{HistoryWithClock(testClock())}, opts...)
	return NewHistory(zaptest.NewLogger(t), s, opts...)
}

func TestHistoryAdd(t *testing.T) {
	ctx := context.Background()
	h := testHistory(t)

	require.NoError(t, h.Add(ctx, "guests", []byte(`[1]`)))

	versions, err := h.Versions(ctx, "guests")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "20261018T080001.000000000Z", versions[0])

	data, err := h.Version(ctx, "guests", versions[0])
	require.NoError(t, err)
	assert.Equal(t, []byte(`[1]`), data)
}

func TestHistoryCleanup(t *testing.T) {
	ctx := context.Background()
	h := testHistory(t, HistoryWithLimit(3))
	for i := 0; i < 20; i++ {
		require.NoError(t, h.Add(ctx, "guests", []byte(fmt.Sprint(i))))
	}
	require.NoError(t, h.Add(ctx, "rooms", []byte("r")))

	versions, err := h.Versions(ctx, "guests")
	require.NoError(t, err)
	require.Len(t, versions, 3)

	// newest first
	data, err := h.Version(ctx, "guests", versions[0])
	require.NoError(t, err)
	assert.Equal(t, "19", string(data))

	// other resources keep their own versions
	versions, err = h.Versions(ctx, "rooms")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestHistoryDisabled(t *testing.T) {
	ctx := context.Background()
	h := testHistory(t, HistoryWithLimit(0))
	require.NoError(t, h.Add(ctx, "guests", []byte("1")))

	versions, err := h.Versions(ctx, "guests")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestHistoryWithBlobStorage(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	s := storage.NewBlobStorageFromBucket(bucket, "suite")
	t.Cleanup(func() { _ = s.Close() })

	h := NewHistory(zaptest.NewLogger(t), s, HistoryWithLimit(2), HistoryWithClock(testClock()))
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Add(ctx, "cashbox", []byte(fmt.Sprint(i))))
	}

	versions, err := h.Versions(ctx, "cashbox")
	require.NoError(t, err)
	assert.Equal(t, []string{"20261018T080005.000000000Z", "20261018T080004.000000000Z"}, versions)
}
