package parser

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

// Engine applies rules to responses. It holds no per-page state, so one
// engine can process any number of responses.
type Engine struct {
	rules    []Rule
	strategy crawler.Strategy
	logger   *zap.Logger
}

// NewEngine builds an engine for the given strategy and rules.
func NewEngine(strategy crawler.Strategy, rules []Rule, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		rules:    append([]Rule(nil), rules...),
		strategy: strategy,
		logger:   logger,
	}
}

// Process returns the follow-up requests and the records extracted from resp.
// The shared pattern record comes first when it has fields, followed by page
// extractor records in rule order.
func (e *Engine) Process(resp crawler.Response) ([]crawler.Request, []crawler.Record) {
	page, err := NewPage(resp)
	if err != nil {
		e.logger.Warn("parse failed, continuing with empty page",
			zap.String("url", resp.Request.URL),
			zap.Error(err),
		)
	}

	candidates := page.Links()
	var (
		shared      map[string]any
		pageRecords []map[string]any
	)
	for _, rule := range e.rules {
		switch a := rule.Action.(type) {
		case FilterURLs:
			candidates = rule.Condition.Filter(candidates)
		case PageExtract:
			if a.Extract == nil {
				continue
			}
			for _, values := range a.Extract(page) {
				if values != nil {
					pageRecords = append(pageRecords, values)
				}
			}
		case PatternExtract:
			if !rule.Condition.Match(resp.Request.URL) {
				continue
			}
			matches := a.Pattern.Matches(page)
			if len(matches) == 0 || a.Transform == nil {
				continue
			}
			value, ok := a.Transform(matches)
			if !ok {
				continue
			}
			if shared == nil {
				shared = make(map[string]any)
			}
			shared[a.Field] = value
		}
	}

	links := make([]crawler.Request, 0, len(candidates))
	for _, u := range candidates {
		links = append(links, resp.Request.Child(u, e.strategy))
	}

	records := make([]crawler.Record, 0, len(pageRecords)+1)
	if len(shared) > 0 {
		records = append(records, crawler.Record{Request: resp.Request, Data: shared})
	}
	for _, data := range pageRecords {
		records = append(records, crawler.Record{Request: resp.Request, Data: data})
	}
	return links, records
}
