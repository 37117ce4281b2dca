package repo

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/foomo/receptionsuite/pkg/metrics"
	"github.com/foomo/receptionsuite/pkg/storage"
	"github.com/foomo/receptionsuite/pkg/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const documentSuffix = ".json"

var (
	ErrInvalidKey  = errors.New("invalid resource key")
	ErrInvalidJSON = errors.New("invalid json document")
	ErrNoVersion   = errors.New("no such version")

	// Null is returned for resources that were never written
	Null = []byte("null")
)

// Repo stores every resource as one <key>.json document
type (
	Repo struct {
		l       *zap.Logger
		storage storage.Storage
		history *History
		now     func() time.Time
		mu      sync.Mutex
	}
	Option func(*Repo)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New(l *zap.Logger, s storage.Storage, opts ...Option) *Repo {
	inst := &Repo{
		l:       l.Named("repo"),
		storage: s,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithHistory(v *History) Option {
	return func(o *Repo) {
		o.history = v
	}
}

func WithClock(v func() time.Time) Option {
	return func(o *Repo) {
		o.now = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Get returns the stored document or Null if the resource does not exist
func (r *Repo) Get(ctx context.Context, key string) ([]byte, error) {
	if !utils.IsValidKey(key) {
		return nil, errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	data, err := r.storage.Read(ctx, key+documentSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return Null, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read resource %q", key)
	}
	return data, nil
}

// Put replaces the document of key. The previous version is handed to the
// history first; a failing backup is logged but does not fail the write.
func (r *Repo) Put(ctx context.Context, key string, data []byte) (time.Time, error) {
	if !utils.IsValidKey(key) {
		return time.Time{}, errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	if !utils.IsJSONDocument(data) {
		return time.Time{}, ErrInvalidJSON
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.history != nil {
		r.backup(ctx, key)
	}

	if err := r.storage.Write(ctx, key+documentSuffix, data); err != nil {
		metrics.StorageWriteFailedCounter.WithLabelValues().Inc()
		return time.Time{}, errors.Wrapf(err, "failed to write resource %q", key)
	}

	r.l.Debug("stored resource", zap.String("key", key), zap.Int("length", len(data)))
	return r.now(), nil
}

// Keys lists all stored resources in alphabetical order
func (r *Repo) Keys(ctx context.Context) ([]string, error) {
	files, err := r.storage.List(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list resources")
	}
	keys := make([]string, 0, len(files))
	for _, file := range files {
		key, ok := strings.CutSuffix(file, documentSuffix)
		if ok && utils.IsValidKey(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Versions lists the backed up versions of key, newest first
func (r *Repo) Versions(ctx context.Context, key string) ([]string, error) {
	if !utils.IsValidKey(key) {
		return nil, errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	if r.history == nil {
		return []string{}, nil
	}
	return r.history.Versions(ctx, key)
}

// Version returns one backed up version of key as listed by Versions
func (r *Repo) Version(ctx context.Context, key, version string) ([]byte, error) {
	if !utils.IsValidKey(key) {
		return nil, errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	if r.history == nil || !utils.IsValidKey(version) {
		return nil, errors.Wrapf(ErrNoVersion, "%q of %q", version, key)
	}
	data, err := r.history.Version(ctx, key, version)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNoVersion, "%q of %q", version, key)
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read version %q of %q", version, key)
	}
	return data, nil
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (r *Repo) backup(ctx context.Context, key string) {
	previous, err := r.storage.Read(ctx, key+documentSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return
	} else if err != nil {
		r.l.Error("could not read previous version", zap.String("key", key), zap.Error(err))
		metrics.HistoryPersistFailedCounter.WithLabelValues().Inc()
		return
	}
	if err := r.history.Add(ctx, key, previous); err != nil {
		r.l.Error("could not persist previous version in history", zap.String("key", key), zap.Error(err))
		metrics.HistoryPersistFailedCounter.WithLabelValues().Inc()
	}
}
