package downloader

import "github.com/JakeFAU/rulecrawler/internal/crawler"

// Middleware hooks into every fetch. Hooks run in registration order:
// ProcessClient and ProcessRequest on the downloader goroutine before the
// fetch starts, ProcessResponse on the fetch goroutine once a response has
// been read. ProcessResponse may therefore run concurrently for different
// requests and must not mutate shared state without synchronization.
type Middleware interface {
	ProcessClient(cfg crawler.ClientConfig, req crawler.Request) crawler.ClientConfig
	ProcessRequest(req crawler.FetchRequest) crawler.FetchRequest
	ProcessResponse(resp crawler.Response) crawler.Response
}

// Base implements every hook as a pass-through. Embed it to override only
// the hooks a middleware needs.
type Base struct{}

// ProcessClient returns cfg unchanged.
func (Base) ProcessClient(cfg crawler.ClientConfig, _ crawler.Request) crawler.ClientConfig {
	return cfg
}

// ProcessRequest returns req unchanged.
func (Base) ProcessRequest(req crawler.FetchRequest) crawler.FetchRequest {
	return req
}

// ProcessResponse returns resp unchanged.
func (Base) ProcessResponse(resp crawler.Response) crawler.Response {
	return resp
}

// Chain is an ordered middleware list.
type Chain []Middleware

// Client folds ProcessClient over base.
func (c Chain) Client(base crawler.ClientConfig, req crawler.Request) crawler.ClientConfig {
	cfg := base
	for _, mw := range c {
		cfg = mw.ProcessClient(cfg, req)
	}
	return cfg
}

// Request folds ProcessRequest over the default GET for req.
func (c Chain) Request(req crawler.Request) crawler.FetchRequest {
	fr := crawler.NewFetchRequest(req)
	for _, mw := range c {
		fr = mw.ProcessRequest(fr)
	}
	return fr
}

// Response folds ProcessResponse over resp.
func (c Chain) Response(resp crawler.Response) crawler.Response {
	for _, mw := range c {
		resp = mw.ProcessResponse(resp)
	}
	return resp
}
