package spider

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/parser"
)

// Extractor builds whole records from a page.
type Extractor func(page *parser.Page) []map[string]any

// NewExtractor looks up a page extractor by name.
func NewExtractor(name string) (Extractor, error) {
	switch name {
	case "meta":
		return Meta, nil
	case "headings":
		return Headings, nil
	case "links":
		return Links, nil
	default:
		return nil, fmt.Errorf("%w: unknown extractor %q", crawler.ErrConfig, name)
	}
}

// Meta emits one record with the page title and its named meta tags.
func Meta(page *parser.Page) []map[string]any {
	meta := make(map[string]any)
	page.Find("meta[content]").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("name")
		if !ok || key == "" {
			key, ok = s.Attr("property")
		}
		if !ok || key == "" {
			return
		}
		content, _ := s.Attr("content")
		meta[strings.ToLower(key)] = strings.TrimSpace(content)
	})
	title := strings.TrimSpace(page.Find("title").First().Text())
	if title == "" && len(meta) == 0 {
		return nil
	}
	return []map[string]any{{"title": title, "meta": meta}}
}

// Headings emits one record per h1 to h3 heading, in document order.
func Headings(page *parser.Page) []map[string]any {
	var out []map[string]any
	page.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		out = append(out, map[string]any{
			"level": goquery.NodeName(s),
			"text":  text,
		})
	})
	return out
}

// Links emits one record listing every resolved link on the page.
func Links(page *parser.Page) []map[string]any {
	links := page.Links()
	if len(links) == 0 {
		return nil
	}
	list := make([]any, len(links))
	for i, l := range links {
		list[i] = l
	}
	return []map[string]any{{"links": list, "count": len(links)}}
}
