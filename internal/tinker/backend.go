// Package tinker talks to the Tinker fine-tuning API.
//
// A Connector builds a Backend for one caller credential. The HTTP connector
// speaks the REST API; the unavailable connector stands in when the backend
// is disabled so every operation fails with ErrUnavailable.
package tinker

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable reports that no backend client is configured in this process.
var ErrUnavailable = errors.New("tinker backend client unavailable")

// Backend is the set of training operations the proxy relays.
type Backend interface {
	CreateRun(ctx context.Context, req RunRequest) (Run, error)
	GetRun(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	CancelRun(ctx context.Context, runID string) error
	ListModels(ctx context.Context) ([]Model, error)
	ListCheckpoints(ctx context.Context, runID string, limit int) ([]Checkpoint, error)
	GetCheckpoint(ctx context.Context, runID, checkpointID string) (Checkpoint, error)
	Ping(ctx context.Context) (bool, error)
}

// Connector constructs a Backend bound to a caller-supplied API key.
type Connector interface {
	Connect(apiKey string) (Backend, error)
}

// APIError is a failure reported by the backend. Error returns the backend's
// message untouched so callers can relay it verbatim.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	return e.Message
}

// UnavailableConnector is used when the backend is disabled.
type UnavailableConnector struct{}

// Connect always fails with ErrUnavailable.
func (UnavailableConnector) Connect(string) (Backend, error) {
	return nil, ErrUnavailable
}

func newAPIError(status int, body errorBody) *APIError {
	msg := body.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return &APIError{StatusCode: status, Message: msg, Code: body.Code}
}

func invalidResponse(status int, err error) *APIError {
	return &APIError{StatusCode: status, Message: fmt.Sprintf("Invalid response: %v", err)}
}
