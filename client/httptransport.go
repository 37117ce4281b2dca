package client

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// maximum number of bytes of an error response kept in the error message
const errorBodyLimit = 512

type httpTransport struct {
	client   *http.Client
	endpoint string
}

// newHTTPTransport will create a new http transport for the given server and client.
// Caution: the provided server url is not validated!
func newHTTPTransport(server string, client *http.Client) transport {
	return &httpTransport{
		endpoint: server,
		client:   client,
	}
}

func (ht *httpTransport) shutdown() {
	ht.client.CloseIdleConnections()
}

func (ht *httpTransport) call(ctx context.Context, method, path string, request []byte) ([]byte, error) {
	var body io.Reader
	if request != nil {
		body = bytes.NewReader(request)
	}
	req, err := http.NewRequestWithContext(ctx, method, ht.endpoint+path, body)
	if err != nil {
		return nil, err
	}
	if request != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ht.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        errors.Errorf("non 2xx reply: %s", bytes.TrimSpace(msg)),
		}
	}
	return io.ReadAll(resp.Body)
}
