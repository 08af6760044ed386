package agent

import (
	"errors"
	"fmt"
)

// ErrClientStopped is returned when a stopped client is asked to do work.
var ErrClientStopped = errors.New("client stopped")

// ErrAlreadyRunning is returned by Start on a client whose loop is running.
var ErrAlreadyRunning = errors.New("client already running")

// RemoteToolError reports a failed tool call on the RPC session.
type RemoteToolError struct {
	Tool string
	Err  error
}

func (e *RemoteToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *RemoteToolError) Unwrap() error {
	return e.Err
}

// TransportConnectError reports a failed session handshake. It ends the run.
type TransportConnectError struct {
	URL string
	Err error
}

func (e *TransportConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.URL, e.Err)
}

func (e *TransportConnectError) Unwrap() error {
	return e.Err
}

// HTTPStatusError reports a non-success status from the chat endpoint.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chat endpoint returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("chat endpoint returned %d", e.StatusCode)
}
