package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

// Page is a parsed response body.
type Page struct {
	url   *url.URL
	doc   *goquery.Document
	links []string
	html  *string
}

// NewPage parses resp. On a parse failure the returned page is empty but
// usable and the error wraps crawler.ErrParse.
func NewPage(resp crawler.Response) (*Page, error) {
	p := &Page{}
	if u, err := url.Parse(resp.Request.URL); err == nil {
		p.url = u
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return p, fmt.Errorf("%w: %s: %w", crawler.ErrParse, resp.Request.URL, err)
	}
	p.doc = doc
	p.links = p.discoverLinks()
	return p, nil
}

// URL is the address the page was fetched from.
func (p *Page) URL() *url.URL {
	return p.url
}

// Links returns every a[href] on the page resolved against the page URL, in
// document order. Links that cannot be normalized are dropped.
func (p *Page) Links() []string {
	return append([]string(nil), p.links...)
}

func (p *Page) discoverLinks() []string {
	if p.url == nil {
		return nil
	}
	var links []string
	p.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, err := crawler.ResolveURL(p.url, href)
		if err != nil {
			return
		}
		links = append(links, link)
	})
	return links
}

// SelectText returns the text content of every node matched by sel.
func (p *Page) SelectText(sel cascadia.Selector) []string {
	if p.doc == nil {
		return nil
	}
	var out []string
	p.doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s.Text())
	})
	return out
}

// Find exposes the document for page extractors.
func (p *Page) Find(selector string) *goquery.Selection {
	if p.doc == nil {
		return &goquery.Selection{}
	}
	return p.doc.Find(selector)
}

// MatchRegex runs re over the serialized document. Patterns with capture
// groups yield the first group; others yield the whole match.
func (p *Page) MatchRegex(re *regexp.Regexp) []string {
	html := p.HTML()
	if html == "" {
		return nil
	}
	var out []string
	if re.NumSubexp() == 0 {
		return re.FindAllString(html, -1)
	}
	for _, m := range re.FindAllStringSubmatch(html, -1) {
		out = append(out, m[1])
	}
	return out
}

// HTML serializes the document. The result is cached.
func (p *Page) HTML() string {
	if p.html != nil {
		return *p.html
	}
	var html string
	if p.doc != nil {
		html, _ = p.doc.Html()
	}
	p.html = &html
	return html
}
