package resource

import (
	"context"

	"github.com/foomo/receptionsuite/pkg/storage"
	"github.com/foomo/receptionsuite/pkg/syncqueue"
	"github.com/foomo/receptionsuite/responses"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// LocalPrefix is the local storage prefix resources are kept under in local mode
const LocalPrefix = "resources/"

type (
	// Remote is the storage server api
	Remote interface {
		Get(ctx context.Context, key string) ([]byte, error)
		Put(ctx context.Context, key string, data []byte) (*responses.Put, error)
	}
	// Backend bundles everything a resource needs to be read and written
	Backend struct {
		l      *zap.Logger
		remote Remote
		local  storage.Storage
		queue  *syncqueue.Queue
		mode   *Switch
	}
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewBackend(l *zap.Logger, remote Remote, local storage.Storage, queue *syncqueue.Queue, mode *Switch) *Backend {
	return &Backend{
		l:      l.Named("resource"),
		remote: remote,
		local:  local,
		queue:  queue,
		mode:   mode,
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Getter
// ------------------------------------------------------------------------------------------------

func (b *Backend) Switch() *Switch {
	return b.mode
}

func (b *Backend) Queue() *syncqueue.Queue {
	return b.queue
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Close stops the queue and releases the local storage
func (b *Backend) Close() error {
	return multierr.Combine(
		b.queue.Close(),
		b.local.Close(),
	)
}
