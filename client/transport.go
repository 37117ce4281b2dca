package client

import "context"

type transport interface {
	call(ctx context.Context, method, path string, request []byte) (response []byte, err error)
	shutdown()
}
