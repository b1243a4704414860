package middleware

import (
	"fmt"
	"math/rand/v2"
	"net/url"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/downloader"
)

// Proxy routes each request through a proxy picked at random from the pool
// matching the request's scheme. Requests whose scheme has no pool go direct.
type Proxy struct {
	downloader.Base
	http  []*url.URL
	https []*url.URL
}

// NewProxy parses the proxy pools. It fails when both pools are empty or an
// entry is not an absolute URL.
func NewProxy(httpProxies, httpsProxies []string) (*Proxy, error) {
	if len(httpProxies) == 0 && len(httpsProxies) == 0 {
		return nil, fmt.Errorf("%w: proxy middleware enabled with an empty proxy pool", crawler.ErrConfig)
	}
	p := &Proxy{}
	var err error
	if p.http, err = parseProxies(httpProxies); err != nil {
		return nil, err
	}
	if p.https, err = parseProxies(httpsProxies); err != nil {
		return nil, err
	}
	return p, nil
}

func parseProxies(raw []string) ([]*url.URL, error) {
	out := make([]*url.URL, 0, len(raw))
	for _, r := range raw {
		u, err := url.Parse(r)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: invalid proxy url %q", crawler.ErrConfig, r)
		}
		out = append(out, u)
	}
	return out, nil
}

// ProcessClient picks the proxy for req.
func (p *Proxy) ProcessClient(cfg crawler.ClientConfig, req crawler.Request) crawler.ClientConfig {
	u, err := url.Parse(req.URL)
	if err != nil {
		return cfg
	}
	var pool []*url.URL
	switch u.Scheme {
	case "http":
		pool = p.http
	case "https":
		pool = p.https
	}
	if len(pool) == 0 {
		return cfg
	}
	cfg.Proxy = pool[rand.IntN(len(pool))]
	return cfg
}
