package repo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/foomo/receptionsuite/pkg/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	HistoryPrefix = "_history/"
	// fixed width so that versions sort lexicographically
	historyStampFormat = "20060102T150405.000000000Z"
)

type (
	// History keeps the previous versions of every resource
	History struct {
		l       *zap.Logger
		storage storage.Storage
		limit   int
		now     func() time.Time
		mu      sync.Mutex
	}
	HistoryOption func(*History)
)

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

// HistoryWithLimit sets the number of versions kept per resource, 0 disables the history
func HistoryWithLimit(v int) HistoryOption {
	return func(o *History) {
		o.limit = v
	}
}

func HistoryWithClock(v func() time.Time) HistoryOption {
	return func(o *History) {
		o.now = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewHistory(l *zap.Logger, s storage.Storage, opts ...HistoryOption) *History {
	inst := &History{
		l:       l.Named("history"),
		storage: s,
		limit:   2,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Add stores data as the newest version of key and drops versions beyond the limit.
func (h *History) Add(ctx context.Context, key string, data []byte) error {
	if h.limit <= 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	version := h.now().UTC().Format(historyStampFormat)
	backupKey := historyDir(key) + version + documentSuffix

	h.l.Debug("writing backup", zap.String("key", key), zap.String("backup", backupKey))
	if err := h.storage.Write(ctx, backupKey, data); err != nil {
		return errors.Wrap(err, "failed to write backup history file")
	}

	if err := h.cleanup(ctx, key); err != nil {
		return errors.Wrap(err, "failed to clean up history")
	}

	return nil
}

// Versions returns the stored version ids of key, newest first.
func (h *History) Versions(ctx context.Context, key string) ([]string, error) {
	keys, err := h.storage.List(ctx, historyDir(key))
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasSuffix(k, documentSuffix) {
			continue
		}
		versions = append(versions, strings.TrimSuffix(strings.TrimPrefix(k, historyDir(key)), documentSuffix))
	}
	return versions, nil
}

// Version reads one stored version of key.
func (h *History) Version(ctx context.Context, key, version string) ([]byte, error) {
	return h.storage.Read(ctx, historyDir(key)+version+documentSuffix)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (h *History) cleanup(ctx context.Context, key string) error {
	versions, err := h.Versions(ctx, key)
	if err != nil {
		return errors.New("could not generate file cleanup list: " + err.Error())
	}
	if len(versions) <= h.limit {
		return nil
	}

	for _, v := range versions[h.limit:] {
		h.l.Debug("removing outdated backup", zap.String("key", key), zap.String("version", v))
		if err := h.storage.Delete(ctx, historyDir(key)+v+documentSuffix); err != nil {
			return fmt.Errorf("could not remove version %s of %s: %w", v, key, err)
		}
	}
	return nil
}

func historyDir(key string) string {
	return HistoryPrefix + key + "/"
}
