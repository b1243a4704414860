package crawler

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// ClientConfig is the per-call transport configuration assembled by the
// downloader middleware chain before each fetch.
type ClientConfig struct {
	Timeout       time.Duration
	Proxy         *url.URL
	RespectRobots bool
	MaxBodyBytes  int64
}

// FetchRequest is the outgoing call assembled by the middleware chain.
type FetchRequest struct {
	Method  string
	URL     string
	Headers http.Header
	Request Request
}

// NewFetchRequest builds a GET for req with no extra headers.
func NewFetchRequest(req Request) FetchRequest {
	return FetchRequest{
		Method:  http.MethodGet,
		URL:     req.URL,
		Headers: make(http.Header),
		Request: req,
	}
}

// Transport performs a single fetch. Failures wrap ErrTransport or ErrRead.
// Redirects follow the transport's own defaults.
type Transport interface {
	Fetch(ctx context.Context, client ClientConfig, req FetchRequest) (Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, client ClientConfig, req FetchRequest) (Response, error)

// Fetch calls f.
func (f TransportFunc) Fetch(ctx context.Context, client ClientConfig, req FetchRequest) (Response, error) {
	return f(ctx, client, req)
}
