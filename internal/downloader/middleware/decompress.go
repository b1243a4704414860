package middleware

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/downloader"
)

// Decompress advertises brotli and gzip support and decodes bodies that come
// back still encoded. A body that fails to decode is passed on unchanged.
type Decompress struct {
	downloader.Base
	logger *zap.Logger
}

// NewDecompress returns a Decompress middleware.
func NewDecompress(logger *zap.Logger) *Decompress {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decompress{logger: logger}
}

// ProcessRequest sets Accept-Encoding unless an earlier middleware chose one.
func (d *Decompress) ProcessRequest(req crawler.FetchRequest) crawler.FetchRequest {
	if req.Headers.Get("Accept-Encoding") != "" {
		return req
	}
	req.Headers = cloneHeaders(req.Headers)
	req.Headers.Set("Accept-Encoding", "br, gzip")
	return req
}

// ProcessResponse decodes the body according to Content-Encoding.
func (d *Decompress) ProcessResponse(resp crawler.Response) crawler.Response {
	enc := strings.ToLower(strings.TrimSpace(resp.Headers.Get("Content-Encoding")))
	if enc == "" || resp.Body == "" {
		return resp
	}
	body, err := decode(enc, []byte(resp.Body))
	if err != nil {
		d.logger.Debug("response left encoded",
			zap.String("url", resp.Request.URL),
			zap.String("encoding", enc),
			zap.Error(err),
		)
		return resp
	}
	if body == nil {
		return resp
	}
	resp.Body = string(body)
	resp.Headers = resp.Headers.Clone()
	resp.Headers.Del("Content-Encoding")
	return resp
}

// decode returns nil, nil when the body is not actually encoded, which happens
// when the transport already decoded it but kept the header.
func decode(enc string, data []byte) ([]byte, error) {
	var r io.Reader
	switch enc {
	case "br":
		r = brotli.NewReader(bytes.NewReader(data))
	case "gzip", "x-gzip":
		if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
			return nil, nil
		}
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip header: %w", crawler.ErrRead, err)
		}
		defer gz.Close()
		r = gz
	default:
		return nil, nil
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", crawler.ErrRead, enc, err)
	}
	return out, nil
}
