package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

// Condition matches URLs against allow and deny patterns. A URL matches when at
// least one allow pattern and no deny pattern matches, so an empty allow list
// matches nothing. Patterns see the URL without its "scheme://" prefix and
// without an explicit port, so a deny pattern such as ":" targets namespaced
// paths rather than every URL.
type Condition struct {
	Allow []*regexp.Regexp
	Deny  []*regexp.Regexp
}

// NewCondition compiles the given patterns.
func NewCondition(allow, deny []string) (Condition, error) {
	var c Condition
	var err error
	if c.Allow, err = compileAll(allow); err != nil {
		return Condition{}, err
	}
	if c.Deny, err = compileAll(deny); err != nil {
		return Condition{}, err
	}
	return c, nil
}

// MustCondition is NewCondition for patterns known to be valid.
func MustCondition(allow, deny []string) Condition {
	c, err := NewCondition(allow, deny)
	if err != nil {
		panic(err)
	}
	return c
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: compile pattern %q: %w", crawler.ErrConfig, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Match reports whether rawURL satisfies the condition.
func (c Condition) Match(rawURL string) bool {
	target := stripScheme(rawURL)
	allowed := false
	for _, re := range c.Allow {
		if re.MatchString(target) {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	for _, re := range c.Deny {
		if re.MatchString(target) {
			return false
		}
	}
	return true
}

func stripScheme(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rawURL = rawURL[i+3:]
	}
	host, rest := rawURL, ""
	if i := strings.IndexAny(rawURL, "/?#"); i >= 0 {
		host, rest = rawURL[:i], rawURL[i:]
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 && isPort(host[i+1:]) {
		host = host[:i]
	}
	return host + rest
}

func isPort(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Filter returns the URLs that match, keeping their order.
func (c Condition) Filter(urls []string) []string {
	out := urls[:0:0]
	for _, u := range urls {
		if c.Match(u) {
			out = append(out, u)
		}
	}
	return out
}

// Action is what a rule does. The implementations are FilterURLs, PageExtract
// and PatternExtract.
type Action interface {
	action()
}

// FilterURLs narrows the candidate links to those matching the rule condition.
type FilterURLs struct{}

// PageExtract calls Extract on the page. Each returned map becomes its own record.
type PageExtract struct {
	Extract func(*Page) []map[string]any
}

// PatternExtract collects Pattern matches on pages whose URL matches the rule
// condition. When there are matches and Transform accepts them, the value is
// stored under Field in the page's shared record.
type PatternExtract struct {
	Field     string
	Pattern   Pattern
	Transform func([]string) (any, bool)
}

func (FilterURLs) action()     {}
func (PageExtract) action()    {}
func (PatternExtract) action() {}

// Rule pairs a condition with an action.
type Rule struct {
	Condition Condition
	Action    Action
}

// Pattern selects strings from a page, either by CSS selector or by regex.
type Pattern struct {
	source string
	css    cascadia.Selector
	re     *regexp.Regexp
}

// CSS compiles a selector pattern.
func CSS(selector string) (Pattern, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: compile selector %q: %w", crawler.ErrConfig, selector, err)
	}
	return Pattern{source: selector, css: sel}, nil
}

// Regex compiles a regular expression pattern.
func Regex(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: compile regex %q: %w", crawler.ErrConfig, expr, err)
	}
	return Pattern{source: expr, re: re}, nil
}

// MustCSS is CSS for selectors known to be valid.
func MustCSS(selector string) Pattern {
	p, err := CSS(selector)
	if err != nil {
		panic(err)
	}
	return p
}

// MustRegex is Regex for expressions known to be valid.
func MustRegex(expr string) Pattern {
	p, err := Regex(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the pattern source.
func (p Pattern) String() string {
	return p.source
}

// Matches applies the pattern to page.
func (p Pattern) Matches(page *Page) []string {
	switch {
	case p.css != nil:
		return page.SelectText(p.css)
	case p.re != nil:
		return page.MatchRegex(p.re)
	default:
		return nil
	}
}
