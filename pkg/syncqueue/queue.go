// Package syncqueue buffers resource writes in local storage and delivers them to the storage server.
//
// Every write is persisted before delivery is attempted, so pending writes survive restarts.
// The queue keeps at most one entry per resource key: a newer write replaces the pending one,
// only the latest value of a resource is ever delivered. Delivery is retried after a fixed
// delay, on every tick of the drain interval and whenever connectivity is restored.
package syncqueue

import (
	"bytes"
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foomo/receptionsuite/pkg/metrics"
	"github.com/foomo/receptionsuite/pkg/storage"
	"github.com/foomo/receptionsuite/pkg/utils"
	"github.com/foomo/receptionsuite/responses"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultStorageKey = "syncqueue.json"
	DefaultRetryDelay = 2 * time.Second
	DefaultInterval   = 30 * time.Second

	StatusPending = "pending"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	ErrInvalidKey     = errors.New("invalid resource key")
	ErrInvalidPayload = errors.New("payload is not a json document")
)

type (
	// Remote delivers a resource to the storage server
	Remote interface {
		Put(ctx context.Context, key string, data []byte) (*responses.Put, error)
	}
	// Connectivity reports whether the storage server is believed to be reachable
	Connectivity interface {
		Online() bool
	}
	// Entry is one pending write
	Entry struct {
		Key       string              `json:"key"`
		Data      jsoniter.RawMessage `json:"data"`
		Timestamp time.Time           `json:"timestamp"`
		Status    string              `json:"status"`
		// bumped on every write to the entry, in memory only
		revision uint64
	}
	Queue struct {
		l               *zap.Logger
		local           storage.Storage
		remote          Remote
		connectivity    Connectivity
		storageKey      string
		interval        time.Duration
		retryDelay      time.Duration
		deliveryTimeout time.Duration
		maxAge          time.Duration
		now             func() time.Time

		// ctx is canceled on Close and bounds all drains started by the queue itself
		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup

		mu         sync.Mutex
		entries    []*Entry
		revision   uint64
		retryTimer *time.Timer
		closed     bool

		draining atomic.Bool
	}
	Option func(*Queue)
)

type online struct{}

func (online) Online() bool { return true }

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

// WithInterval sets the period of the recurring drain run by Start
func WithInterval(v time.Duration) Option {
	return func(o *Queue) {
		o.interval = v
	}
}

// WithRetryDelay sets the fixed delay before a drain that left entries behind is repeated
func WithRetryDelay(v time.Duration) Option {
	return func(o *Queue) {
		o.retryDelay = v
	}
}

// WithDeliveryTimeout bounds every single delivery, 0 waits for the transport
func WithDeliveryTimeout(v time.Duration) Option {
	return func(o *Queue) {
		o.deliveryTimeout = v
	}
}

// WithMaxAge evicts entries older than v instead of delivering them, 0 keeps them forever
func WithMaxAge(v time.Duration) Option {
	return func(o *Queue) {
		o.maxAge = v
	}
}

func WithConnectivity(v Connectivity) Option {
	return func(o *Queue) {
		o.connectivity = v
	}
}

// WithStorageKey sets the local storage key the queue is persisted under
func WithStorageKey(v string) Option {
	return func(o *Queue) {
		o.storageKey = v
	}
}

func WithClock(v func() time.Time) Option {
	return func(o *Queue) {
		o.now = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// New returns a queue persisting to local and delivering to remote.
// Entries persisted by a previous instance are restored.
func New(ctx context.Context, l *zap.Logger, local storage.Storage, remote Remote, opts ...Option) (*Queue, error) {
	inst := &Queue{
		l:            l.Named("syncqueue"),
		local:        local,
		remote:       remote,
		connectivity: online{},
		storageKey:   DefaultStorageKey,
		interval:     DefaultInterval,
		retryDelay:   DefaultRetryDelay,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(inst)
	}

	inst.ctx, inst.cancel = context.WithCancel(context.Background())

	if err := inst.restore(ctx); err != nil {
		inst.cancel()
		return nil, err
	}

	return inst, nil
}

// ------------------------------------------------------------------------------------------------
// ~ Getter
// ------------------------------------------------------------------------------------------------

// Entries returns a copy of the pending entries in delivery order
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	ret := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		ret = append(ret, e.clone())
	}
	return ret
}

// Len returns the number of pending entries
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Push queues data as the latest value of key, persists the queue and starts a
// drain without waiting for it. The returned Flush completes when that drain returns.
// Failing to persist the queue is logged; the entry is still kept in memory.
func (q *Queue) Push(ctx context.Context, key string, data []byte) (*Flush, error) {
	if !utils.IsValidKey(key) {
		return nil, errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	if !utils.IsJSONDocument(data) {
		return nil, errors.Wrapf(ErrInvalidPayload, "key %q", key)
	}

	q.mu.Lock()
	q.revision++
	if e := q.find(key); e != nil {
		e.Data = bytes.Clone(data)
		e.Timestamp = q.now()
		e.revision = q.revision
	} else {
		q.entries = append(q.entries, &Entry{
			Key:       key,
			Data:      bytes.Clone(data),
			Timestamp: q.now(),
			Status:    StatusPending,
			revision:  q.revision,
		})
	}
	q.persistLocked(ctx)
	q.mu.Unlock()

	q.l.Debug("queued write", zap.String("key", key), zap.Int("length", len(data)))
	return q.trigger(), nil
}

// PushValue encodes v and pushes it as the latest value of key
func PushValue[T any](ctx context.Context, q *Queue, key string, v T) (*Flush, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode value of %q", key)
	}
	return q.Push(ctx, key, data)
}

// HandleOnline is called when connectivity was restored
func (q *Queue) HandleOnline() *Flush {
	q.l.Debug("connectivity restored")
	return q.trigger()
}

// Drain delivers all pending entries once, in order, one after another.
// It is a no-op while offline, when the queue is empty or while another drain is running.
// Failures stay in the queue and are retried after the retry delay; they are
// reported in the returned Report and never returned as error.
func (q *Queue) Drain(ctx context.Context) Report {
	report := Report{RunID: uuid.New().String()}

	if !q.connectivity.Online() {
		report.Skipped = SkipOffline
		return report
	}
	if !q.draining.CompareAndSwap(false, true) {
		report.Skipped = SkipInFlight
		return report
	}
	q.drain(ctx, &report)
	q.draining.Store(false)

	// released first, an early retry must not see the drain as in flight
	if report.Remaining > 0 {
		q.scheduleRetry()
	}
	return report
}

// Start drains the queue now and then on every interval until ctx is done
func (q *Queue) Start(ctx context.Context) error {
	l := q.l.Named("routine.drain")
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	q.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			l.Debug("routine canceled", zap.Error(ctx.Err()))
			return nil
		case <-ticker.C:
			q.Drain(ctx)
		}
	}
}

// Close stops pending retries, cancels running background drains and waits for them.
// Pending entries stay persisted.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	if q.retryTimer != nil {
		q.retryTimer.Stop()
		q.retryTimer = nil
	}
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	return nil
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// drain runs one pass over a snapshot of the queue, the in-flight guard must be held
func (q *Queue) drain(ctx context.Context, report *Report) {
	snapshot := q.Entries()
	if len(snapshot) == 0 {
		report.Skipped = SkipEmpty
		return
	}

	l := q.l.With(zap.String("run_id", report.RunID))
	l.Debug("drain started", zap.Int("entries", len(snapshot)))
	start := time.Now()

	for _, e := range snapshot {
		if ctx.Err() != nil {
			l.Debug("drain canceled", zap.Error(ctx.Err()))
			break
		}
		result := q.deliver(ctx, e)
		report.Results = append(report.Results, result)
		metrics.QueueDeliveryCounter.WithLabelValues(result.Kind.String()).Inc()

		switch result.Kind {
		case KindDelivered:
			q.remove(ctx, e)
			l.Debug("delivered", zap.String("key", e.Key))
		case KindExpired:
			q.remove(ctx, e)
			l.Warn("evicted expired write", zap.String("key", e.Key), zap.Time("timestamp", e.Timestamp))
		default:
			l.Warn("delivery failed", zap.String("key", e.Key), zap.Error(result.Err))
		}
	}

	report.Remaining = q.Len()
	metrics.QueueDrainDuration.WithLabelValues().Observe(time.Since(start).Seconds())
	l.Debug("drain done", zap.Int("remaining", report.Remaining))
}

// trigger runs a drain in the background
func (q *Queue) trigger() *Flush {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return CompletedFlush(Report{Skipped: SkipClosed})
	}
	q.wg.Add(1)
	q.mu.Unlock()

	f := newFlush()
	go func() {
		defer q.wg.Done()
		f.complete(q.Drain(q.ctx))
	}()
	return f
}

func (q *Queue) scheduleRetry() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.retryTimer != nil {
		return
	}
	q.retryTimer = time.AfterFunc(q.retryDelay, func() {
		q.mu.Lock()
		q.retryTimer = nil
		if q.closed {
			q.mu.Unlock()
			return
		}
		q.wg.Add(1)
		q.mu.Unlock()

		defer q.wg.Done()
		q.Drain(q.ctx)
	})
}

func (q *Queue) deliver(ctx context.Context, e Entry) Result {
	if q.maxAge > 0 && q.now().Sub(e.Timestamp) > q.maxAge {
		return Result{Key: e.Key, Kind: KindExpired}
	}
	if q.deliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.deliveryTimeout)
		defer cancel()
	}

	ack, err := q.remote.Put(ctx, e.Key, e.Data)
	if err != nil {
		return Result{Key: e.Key, Kind: KindFailed, Err: err}
	}
	result := Result{Key: e.Key, Kind: KindDelivered}
	if ack != nil {
		result.Timestamp = ack.Timestamp
	}
	return result
}

// remove drops the entry unless it was replaced by a newer write in the meantime
func (q *Queue) remove(ctx context.Context, delivered Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.Key != delivered.Key {
			continue
		}
		if e.revision != delivered.revision {
			q.l.Debug("entry was replaced during delivery", zap.String("key", e.Key))
			return
		}
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		q.persistLocked(ctx)
		return
	}
}

func (q *Queue) find(key string) *Entry {
	for _, e := range q.entries {
		if e.Key == key {
			return e
		}
	}
	return nil
}

// persistLocked writes the queue to local storage, q.mu must be held
func (q *Queue) persistLocked(ctx context.Context) {
	metrics.QueueLengthGauge.WithLabelValues().Set(float64(len(q.entries)))
	data, err := json.Marshal(q.entries)
	if err == nil {
		err = q.local.Write(context.WithoutCancel(ctx), q.storageKey, data)
	}
	if err != nil {
		q.l.Error("could not persist queue", zap.Int("entries", len(q.entries)), zap.Error(err))
		metrics.QueuePersistFailedCounter.WithLabelValues().Inc()
	}
}

func (q *Queue) restore(ctx context.Context) error {
	data, err := q.local.Read(ctx, q.storageKey)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return errors.Wrap(err, "failed to read persisted queue")
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		q.l.Error("discarding corrupt persisted queue", zap.Error(err))
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range entries {
		if e == nil || !utils.IsValidKey(e.Key) || !utils.IsJSONDocument(e.Data) {
			q.l.Warn("skipping invalid persisted entry")
			continue
		}
		q.revision++
		e.Status = StatusPending
		e.revision = q.revision
		if existing := q.find(e.Key); existing != nil {
			*existing = *e
			continue
		}
		q.entries = append(q.entries, e)
	}
	metrics.QueueLengthGauge.WithLabelValues().Set(float64(len(q.entries)))
	q.l.Info("restored queue", zap.Int("entries", len(q.entries)))
	return nil
}

func (e *Entry) clone() Entry {
	c := *e
	c.Data = bytes.Clone(e.Data)
	return c
}
