// Package resource reads and writes typed JSON resources either through the storage
// server or the local store, depending on the mode switch at the time of the call.
package resource

import (
	"bytes"
	"context"
	"os"
	"time"

	"github.com/foomo/receptionsuite/pkg/syncqueue"
	"github.com/foomo/receptionsuite/pkg/utils"
	"github.com/foomo/receptionsuite/responses"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	ErrInvalidKey = errors.New("invalid resource key")
)

// Resource is the accessor of a single resource key
type Resource[T any] struct {
	l   *zap.Logger
	b   *Backend
	key string
}

// New returns the accessor of key
func New[T any](b *Backend, key string) *Resource[T] {
	return &Resource[T]{
		l:   b.l.With(zap.String("key", key)),
		b:   b,
		key: key,
	}
}

func (r *Resource[T]) Key() string {
	return r.key
}

// ReadAll returns the current value or def when the resource was never written.
// In local mode, unreadable values are logged and answered with def.
func (r *Resource[T]) ReadAll(ctx context.Context, def T) (T, error) {
	if r.b.mode.Local() {
		return r.readLocal(ctx, def), nil
	}

	data, err := r.b.remote.Get(ctx, r.key)
	if err != nil {
		return def, err
	}
	if isNull(data) {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def, errors.Wrapf(err, "failed to decode resource %q", r.key)
	}
	return v, nil
}

// Write stores v right away. In local mode failures are logged and
// acknowledged with Success false instead of being returned.
func (r *Resource[T]) Write(ctx context.Context, v T) (*responses.Put, error) {
	data, err := json.Marshal(v)
	if r.b.mode.Local() {
		if err == nil && !utils.IsValidKey(r.key) {
			err = ErrInvalidKey
		}
		if err == nil {
			err = r.b.local.Write(ctx, r.localKey(), data)
		}
		if err != nil {
			r.l.Error("could not write resource locally", zap.Error(err))
			return &responses.Put{Success: false, Timestamp: time.Now()}, nil
		}
		return &responses.Put{Success: true, Timestamp: time.Now()}, nil
	}

	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode resource %q", r.key)
	}
	return r.b.remote.Put(ctx, r.key, data)
}

// Save queues v for delivery to the storage server and returns without waiting.
// In local mode v is written locally and the returned flush is already done.
func (r *Resource[T]) Save(ctx context.Context, v T) (*syncqueue.Flush, error) {
	if r.b.mode.Local() {
		if _, err := r.Write(ctx, v); err != nil {
			return nil, err
		}
		return syncqueue.CompletedFlush(syncqueue.Report{Skipped: syncqueue.SkipLocal}), nil
	}
	return syncqueue.PushValue(ctx, r.b.queue, r.key, v)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (r *Resource[T]) readLocal(ctx context.Context, def T) T {
	if !utils.IsValidKey(r.key) {
		r.l.Error("could not read resource locally", zap.Error(ErrInvalidKey))
		return def
	}
	data, err := r.b.local.Read(ctx, r.localKey())
	if errors.Is(err, os.ErrNotExist) {
		return def
	} else if err != nil {
		r.l.Error("could not read resource locally", zap.Error(err))
		return def
	}
	if isNull(data) {
		return def
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		r.l.Warn("discarding undecodable local resource", zap.Error(err))
		return def
	}
	return v
}

func (r *Resource[T]) localKey() string {
	return LocalPrefix + r.key + ".json"
}

func isNull(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}
