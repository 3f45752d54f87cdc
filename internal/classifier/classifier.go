package classifier

import (
	"context"
	"errors"
)

// Client sends one text to the remote classify endpoint.
// A transport failure or timeout is returned as an error; any HTTP status,
// including non-2xx, comes back as a Response.
type Client interface {
	Classify(ctx context.Context, text string) (Response, error)
}

// Response is the raw reply from the classifier.
type Response struct {
	StatusCode int
	Body       string
}

// ErrNotConfigured is returned when no classify endpoint is set.
var ErrNotConfigured = errors.New("classifier endpoint not configured")

// Unconfigured is the client used when no endpoint is available.
type Unconfigured struct{}

// Classify returns ErrNotConfigured.
func (Unconfigured) Classify(ctx context.Context, text string) (Response, error) {
	_ = ctx
	_ = text
	return Response{}, ErrNotConfigured
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, text string) (Response, error)

// Classify calls f.
func (f ClientFunc) Classify(ctx context.Context, text string) (Response, error) {
	return f(ctx, text)
}
