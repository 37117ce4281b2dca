package client_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foomo/receptionsuite/client"
	"github.com/foomo/receptionsuite/pkg/repo/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"
)

func newTestClient(tb testing.TB) *client.Client {
	tb.Helper()
	_, api := mock.NewServer(tb)
	c, err := client.NewHTTPClient(api)
	require.NoError(tb, err)
	tb.Cleanup(c.Shutdown)
	return c
}

func TestInvalidHTTPClientInit(t *testing.T) {
	for _, server := range []string{"", "bogus", "htt:/notaurl", "htts://notaurl", "/path/segment/only"} {
		c, err := client.NewHTTPClient(server)
		assert.Nil(t, c, server)
		assert.Error(t, err, server)
	}
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	data, err := c.Get(ctx, "guests")
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	ack, err := c.Put(ctx, "guests", []byte(`{"list":[{"id":1,"name":"Ana"}]}`))
	require.NoError(t, err)
	assert.True(t, ack.Success)

	data, err = c.Get(ctx, "guests")
	require.NoError(t, err)
	assert.JSONEq(t, `{"list":[{"id":1,"name":"Ana"}]}`, string(data))

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"guests"}, keys)
}

func TestHeartbeat(t *testing.T) {
	c := newTestClient(t)

	hb, err := c.Heartbeat(context.Background())
	require.NoError(t, err)
	assert.True(t, hb.Alive)
}

func TestInvalidKey(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Get(context.Background(), "../secrets")
	require.Error(t, err)
	_, err = c.Put(context.Background(), "", []byte(`{}`))
	require.Error(t, err)
}

func TestNon2xxIsTransportError(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Put(context.Background(), "guests", []byte(`{"broken":`))
	require.Error(t, err)

	var te *client.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "put", te.Op)
	assert.Equal(t, "guests", te.Key)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
}

func TestUnacknowledgedWriteIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	t.Cleanup(server.Close)

	c, err := client.NewHTTPClient(server.URL)
	require.NoError(t, err)

	_, err = c.Put(context.Background(), "guests", []byte(`{}`))
	var te *client.TransportError
	require.ErrorAs(t, err, &te)
}

func TestUnreachableServerIsTransportError(t *testing.T) {
	// a listener dropping every connection
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	c, err := client.NewHTTPClient("http://" + ln.Addr().(*net.TCPAddr).String() + "/api") //nolint:forcetypeassert
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "guests")
	var te *client.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "get", te.Op)
	assert.Zero(t, te.StatusCode)
	assert.Error(t, te.Unwrap())
}

func BenchmarkPut(b *testing.B) {
	c := newTestClient(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Put(ctx, "rooms", []byte(`{"101":{"status":"clean"}}`)); err != nil {
			b.Fatal(err)
		}
	}
}
