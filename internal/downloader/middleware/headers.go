package middleware

import (
	"net/http"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/downloader"
)

// Headers adds a fixed set of headers to every request. Headers already set by
// earlier middleware are overwritten.
type Headers struct {
	downloader.Base
	values http.Header
}

// NewHeaders returns a Headers middleware.
func NewHeaders(values map[string]string) *Headers {
	h := make(http.Header, len(values))
	for k, v := range values {
		h.Set(k, v)
	}
	return &Headers{values: h}
}

// ProcessRequest copies the configured headers onto req.
func (h *Headers) ProcessRequest(req crawler.FetchRequest) crawler.FetchRequest {
	if len(h.values) == 0 {
		return req
	}
	req.Headers = cloneHeaders(req.Headers)
	for k, vs := range h.values {
		req.Headers[k] = append([]string(nil), vs...)
	}
	return req
}

func cloneHeaders(h http.Header) http.Header {
	if h == nil {
		return make(http.Header)
	}
	return h.Clone()
}
