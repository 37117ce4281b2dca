package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/foomo/receptionsuite/pkg/utils"
	"github.com/foomo/receptionsuite/responses"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	// Client talks to the storage server api
	Client struct {
		t transport
	}
	HTTPOption func(*httpOptions)

	httpOptions struct {
		client *http.Client
	}
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// NewHTTPClient constructs a new client for the api below server, e.g. http://127.0.0.1:8080/api
func NewHTTPClient(server string, opts ...HTTPOption) (*Client, error) {
	if !utils.IsValidURL(server) {
		return nil, errors.Errorf("invalid server url %q", server)
	}
	o := &httpOptions{
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Client{
		t: newHTTPTransport(strings.TrimSuffix(server, "/"), o.client),
	}, nil
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithHTTPClient(v *http.Client) HTTPOption {
	return func(o *httpOptions) {
		o.client = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Get returns the raw document of key, a missing resource yields "null"
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if !utils.IsValidKey(key) {
		return nil, errors.Errorf("invalid resource key %q", key)
	}
	data, err := c.t.call(ctx, http.MethodGet, "/storage/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, transportError("get", key, err)
	}
	return data, nil
}

// Put replaces the document of key with data
func (c *Client) Put(ctx context.Context, key string, data []byte) (*responses.Put, error) {
	if !utils.IsValidKey(key) {
		return nil, errors.Errorf("invalid resource key %q", key)
	}
	reply, err := c.t.call(ctx, http.MethodPost, "/storage/"+url.PathEscape(key), data)
	if err != nil {
		return nil, transportError("put", key, err)
	}
	response := &responses.Put{}
	if err := json.Unmarshal(reply, response); err != nil {
		return nil, transportError("put", key, errors.Wrap(err, "could not decode acknowledgement"))
	}
	if !response.Success {
		return response, transportError("put", key, errors.New("server did not acknowledge the write"))
	}
	return response, nil
}

// Keys lists the stored resources
func (c *Client) Keys(ctx context.Context) ([]string, error) {
	reply, err := c.t.call(ctx, http.MethodGet, "/storage", nil)
	if err != nil {
		return nil, transportError("keys", "", err)
	}
	var keys []string
	if err := json.Unmarshal(reply, &keys); err != nil {
		return nil, transportError("keys", "", err)
	}
	return keys, nil
}

// Heartbeat tells the server someone is around, it doubles as connectivity probe
func (c *Client) Heartbeat(ctx context.Context) (*responses.Heartbeat, error) {
	reply, err := c.t.call(ctx, http.MethodPost, "/heartbeat", nil)
	if err != nil {
		return nil, transportError("heartbeat", "", err)
	}
	response := &responses.Heartbeat{}
	if err := json.Unmarshal(reply, response); err != nil {
		return nil, transportError("heartbeat", "", err)
	}
	return response, nil
}

func (c *Client) Shutdown() {
	c.t.shutdown()
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func transportError(op, key string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		te.Op = op
		te.Key = key
		return te
	}
	return &TransportError{Op: op, Key: key, Err: err}
}
