package resource_test

import (
	"context"
	"testing"
	"time"

	"github.com/foomo/receptionsuite/client"
	"github.com/foomo/receptionsuite/pkg/repo/mock"
	"github.com/foomo/receptionsuite/pkg/resource"
	"github.com/foomo/receptionsuite/pkg/storage"
	"github.com/foomo/receptionsuite/pkg/syncqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	backend *resource.Backend
	local   storage.Storage
	client  *client.Client
}

func newFixture(t *testing.T, server string, mode resource.Mode) *fixture {
	t.Helper()
	l := zaptest.NewLogger(t)

	c, err := client.NewHTTPClient(server)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)

	local, err := storage.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)

	q, err := syncqueue.New(context.Background(), l, local, c, syncqueue.WithRetryDelay(time.Hour))
	require.NoError(t, err)

	b := resource.NewBackend(l, c, local, q, resource.NewSwitch(mode))
	t.Cleanup(func() {
		assert.NoError(t, b.Close())
	})
	return &fixture{backend: b, local: local, client: c}
}

func TestRemoteReadWrite(t *testing.T) {
	ctx := context.Background()
	_, api := mock.NewServer(t)
	f := newFixture(t, api, resource.ModeRemote)
	guests := resource.New[mock.Guests](f.backend, "guests")

	v, err := guests.ReadAll(ctx, mock.Guests{List: []mock.Guest{}})
	require.NoError(t, err)
	assert.Empty(t, v.List)
	assert.NotNil(t, v.List)

	ack, err := guests.Write(ctx, mock.MakeGuests())
	require.NoError(t, err)
	assert.True(t, ack.Success)

	v, err = guests.ReadAll(ctx, mock.Guests{})
	require.NoError(t, err)
	assert.Equal(t, mock.MakeGuests(), v)
}

func TestRemoteTransportError(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1/api", resource.ModeRemote)
	guests := resource.New[mock.Guests](f.backend, "guests")

	def := mock.Guests{List: []mock.Guest{{ID: 7}}}
	v, err := guests.ReadAll(context.Background(), def)
	var te *client.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, def, v)

	_, err = guests.Write(context.Background(), mock.MakeGuests())
	require.ErrorAs(t, err, &te)
}

func TestRemoteSaveIsQueued(t *testing.T) {
	ctx := context.Background()
	_, api := mock.NewServer(t)
	f := newFixture(t, api, resource.ModeRemote)
	guests := resource.New[mock.Guests](f.backend, "guests")

	flush, err := guests.Save(ctx, mock.MakeGuests())
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	report, err := flush.Wait(waitCtx)
	require.NoError(t, err)
	assert.True(t, report.Delivered("guests"))

	data, err := f.client.Get(ctx, "guests")
	require.NoError(t, err)
	assert.JSONEq(t, `{"list":[{"id":1,"name":"Ana"}]}`, string(data))
}

func TestLocalMode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "http://127.0.0.1:1/api", resource.ModeLocal)
	guests := resource.New[mock.Guests](f.backend, "guests")

	v, err := guests.ReadAll(ctx, mock.Guests{})
	require.NoError(t, err)
	assert.Equal(t, mock.Guests{}, v)

	ack, err := guests.Write(ctx, mock.MakeGuests())
	require.NoError(t, err)
	assert.True(t, ack.Success)

	v, err = guests.ReadAll(ctx, mock.Guests{})
	require.NoError(t, err)
	assert.Equal(t, mock.MakeGuests(), v)

	flush, err := guests.Save(ctx, mock.Guests{List: []mock.Guest{{ID: 2, Name: "Bo"}}})
	require.NoError(t, err)
	select {
	case <-flush.Done():
	default:
		t.Fatal("local save must be done right away")
	}
	assert.Equal(t, syncqueue.SkipLocal, flush.Report().Skipped)
	assert.Zero(t, f.backend.Queue().Len())

	v, err = guests.ReadAll(ctx, mock.Guests{})
	require.NoError(t, err)
	assert.Equal(t, "Bo", v.List[0].Name)
}

func TestLocalModeUndecodableYieldsDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "http://127.0.0.1:1/api", resource.ModeLocal)
	require.NoError(t, f.local.Write(ctx, resource.LocalPrefix+"guests.json", []byte(`{"list":"nope"`)))

	def := mock.Guests{List: []mock.Guest{{ID: 9}}}
	v, err := resource.New[mock.Guests](f.backend, "guests").ReadAll(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, def, v)
}

func TestLocalModeFailedWriteIsNotAnError(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1/api", resource.ModeLocal)

	ack, err := resource.New[mock.Guests](f.backend, "../guests").Write(context.Background(), mock.MakeGuests())
	require.NoError(t, err)
	assert.False(t, ack.Success)
}

func TestModeIsReadPerCall(t *testing.T) {
	ctx := context.Background()
	_, api := mock.NewServer(t)
	f := newFixture(t, api, resource.ModeLocal)
	guests := resource.New[mock.Guests](f.backend, "guests")

	_, err := guests.Write(ctx, mock.Guests{List: []mock.Guest{{ID: 1, Name: "local"}}})
	require.NoError(t, err)

	f.backend.Switch().Set(resource.ModeRemote)
	v, err := guests.ReadAll(ctx, mock.Guests{})
	require.NoError(t, err)
	assert.Equal(t, mock.Guests{}, v)

	f.backend.Switch().Set(resource.ModeLocal)
	v, err = guests.ReadAll(ctx, mock.Guests{})
	require.NoError(t, err)
	assert.Equal(t, "local", v.List[0].Name)
}

func TestParseMode(t *testing.T) {
	m, err := resource.ParseMode("local")
	require.NoError(t, err)
	assert.Equal(t, resource.ModeLocal, m)
	assert.Equal(t, "local", m.String())

	m, err = resource.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, resource.ModeRemote, m)

	_, err = resource.ParseMode("hybrid")
	require.Error(t, err)
}
