package middleware

import (
	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/downloader"
)

// UserAgent sets the User-Agent header on every request.
type UserAgent struct {
	downloader.Base
	value string
}

// NewUserAgent returns a UserAgent middleware. An empty value leaves requests untouched.
func NewUserAgent(value string) *UserAgent {
	return &UserAgent{value: value}
}

// ProcessRequest sets the header.
func (u *UserAgent) ProcessRequest(req crawler.FetchRequest) crawler.FetchRequest {
	if u.value == "" {
		return req
	}
	req.Headers = cloneHeaders(req.Headers)
	req.Headers.Set("User-Agent", u.value)
	return req
}
