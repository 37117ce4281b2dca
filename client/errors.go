package client

import (
	"fmt"
)

// TransportError is returned for every failed call: the server could not be
// reached or answered with a non 2xx status.
type TransportError struct {
	Op         string
	Key        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := "transport " + e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
