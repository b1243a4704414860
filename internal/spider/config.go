package spider

import (
	"fmt"

	"github.com/JakeFAU/rulecrawler/internal/config"
	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/parser"
)

// FromConfig compiles a configured spider. Every invalid rule is reported.
func FromConfig(cfg config.SpiderConfig) (Spider, error) {
	b := NewBuilder(cfg.Name, cfg.Version).StartURLs(cfg.StartURLs...)
	for i, rc := range cfg.Rules {
		cond, err := parser.NewCondition(rc.Allow, rc.Deny)
		if err != nil {
			b.errs = append(b.errs, fmt.Errorf("rule %d: %w", i, err))
			continue
		}
		action, err := actionFromConfig(rc)
		if err != nil {
			b.errs = append(b.errs, fmt.Errorf("rule %d: %w", i, err))
			continue
		}
		b.Rule(cond, action)
	}
	return b.Build()
}

func actionFromConfig(rc config.RuleConfig) (parser.Action, error) {
	switch rc.Action {
	case "filter_urls":
		return parser.FilterURLs{}, nil
	case "pattern":
		if rc.Field == "" {
			return nil, fmt.Errorf("%w: pattern rule needs a field", crawler.ErrConfig)
		}
		var (
			pattern parser.Pattern
			err     error
		)
		switch {
		case rc.CSS != "" && rc.Regex != "":
			return nil, fmt.Errorf("%w: pattern rule takes css or regex, not both", crawler.ErrConfig)
		case rc.CSS != "":
			pattern, err = parser.CSS(rc.CSS)
		case rc.Regex != "":
			pattern, err = parser.Regex(rc.Regex)
		default:
			return nil, fmt.Errorf("%w: pattern rule needs css or regex", crawler.ErrConfig)
		}
		if err != nil {
			return nil, err
		}
		transform, err := NewTransform(rc.Transform, rc.Separator)
		if err != nil {
			return nil, err
		}
		return parser.PatternExtract{Field: rc.Field, Pattern: pattern, Transform: transform}, nil
	case "page":
		extract, err := NewExtractor(rc.Extractor)
		if err != nil {
			return nil, err
		}
		return parser.PageExtract{Extract: extract}, nil
	default:
		return nil, fmt.Errorf("%w: unknown rule action %q", crawler.ErrConfig, rc.Action)
	}
}
