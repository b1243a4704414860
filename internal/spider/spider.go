// Package spider describes a crawl: its identity, the seed URLs and the rules
// the parser applies to every fetched page.
package spider

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/parser"
)

// Spider is an immutable crawl definition.
type Spider struct {
	Name      string
	Version   string
	StartURLs []string
	Rules     []parser.Rule
}

// Seeds converts the start URLs into depth-0 requests.
func (s Spider) Seeds(strategy crawler.Strategy) []crawler.Request {
	seeds := make([]crawler.Request, 0, len(s.StartURLs))
	for _, u := range s.StartURLs {
		seeds = append(seeds, crawler.NewSeed(u, strategy))
	}
	return seeds
}

// Builder assembles a Spider. Errors are collected and reported by Build.
type Builder struct {
	spider Spider
	errs   []error
}

// NewBuilder starts a spider with the given identity.
func NewBuilder(name, version string) *Builder {
	return &Builder{spider: Spider{Name: name, Version: version}}
}

// StartURLs appends seed URLs. Each must be an absolute http(s) URL.
func (b *Builder) StartURLs(urls ...string) *Builder {
	for _, u := range urls {
		normalized, err := crawler.NormalizeURL(u)
		if err != nil {
			b.errs = append(b.errs, fmt.Errorf("%w: start url %q: %w", crawler.ErrConfig, u, err))
			continue
		}
		b.spider.StartURLs = append(b.spider.StartURLs, normalized)
	}
	return b
}

// Rule appends a rule. Rules are applied in the order added.
func (b *Builder) Rule(cond parser.Condition, action parser.Action) *Builder {
	if action == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: rule %d has no action", crawler.ErrConfig, len(b.spider.Rules)))
		return b
	}
	b.spider.Rules = append(b.spider.Rules, parser.Rule{Condition: cond, Action: action})
	return b
}

// Build returns the spider or every error met while building it.
func (b *Builder) Build() (Spider, error) {
	if b.spider.Name == "" {
		b.errs = append(b.errs, fmt.Errorf("%w: spider name is required", crawler.ErrConfig))
	}
	if err := errors.Join(b.errs...); err != nil {
		return Spider{}, err
	}
	out := b.spider
	out.StartURLs = append([]string(nil), b.spider.StartURLs...)
	out.Rules = append([]parser.Rule(nil), b.spider.Rules...)
	return out, nil
}
