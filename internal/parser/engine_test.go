package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

func firstText(matches []string) (any, bool) {
	return strings.TrimSpace(matches[0]), true
}

func response(url, body string) crawler.Response {
	return crawler.Response{
		Request:    crawler.Request{URL: url, Depth: 0, Priority: crawler.BreadthFirst.Priority(0)},
		StatusCode: 200,
		Body:       body,
	}
}

func TestFilterURLsAllowAndDeny(t *testing.T) {
	t.Parallel()

	body := `<a href="/wiki/Cat">cat</a><a href="/wiki/Talk:Cat">talk</a><a href="/other">other</a>`
	engine := NewEngine(crawler.BreadthFirst, []Rule{
		{Condition: MustCondition([]string{"/wiki/"}, []string{":"}), Action: FilterURLs{}},
	}, nil)

	links, records := engine.Process(response("http://x/", body))
	require.Empty(t, records)
	require.Len(t, links, 1)
	require.Equal(t, "http://x/wiki/Cat", links[0].URL)
	require.Equal(t, 1, links[0].Depth)
	require.Equal(t, uint64(500_000_000), links[0].Priority)
}

func TestFilterURLsOnHostWithPort(t *testing.T) {
	t.Parallel()

	body := `<a href="/wiki/Cat">cat</a><a href="/wiki/Talk:Cat">talk</a>`
	engine := NewEngine(crawler.BreadthFirst, []Rule{
		{Condition: MustCondition([]string{"/wiki/"}, []string{":"}), Action: FilterURLs{}},
	}, nil)

	links, _ := engine.Process(response("http://localhost:8080/", body))
	require.Len(t, links, 1)
	require.Equal(t, "http://localhost:8080/wiki/Cat", links[0].URL)
}

func TestFilterRulesApplyInOrder(t *testing.T) {
	t.Parallel()

	body := `<a href="/a/1">1</a><a href="/a/2">2</a><a href="/b/3">3</a>`
	engine := NewEngine(crawler.DepthFirst, []Rule{
		{Condition: MustCondition([]string{"^x/a/"}, nil), Action: FilterURLs{}},
		{Condition: MustCondition([]string{"2$"}, nil), Action: FilterURLs{}},
	}, nil)

	links, _ := engine.Process(response("http://x/", body))
	require.Len(t, links, 1)
	require.Equal(t, "http://x/a/2", links[0].URL)
}

func TestNoFilterKeepsAllLinks(t *testing.T) {
	t.Parallel()

	body := `<a href="http://a.test/">a</a><a href="/rel">rel</a><a href="mailto:x@y">mail</a><a href="http://[::1">bad</a>`
	links, _ := NewEngine(crawler.Unordered, nil, nil).Process(response("http://x/dir/", body))
	got := make([]string, 0, len(links))
	for _, l := range links {
		got = append(got, l.URL)
		require.Equal(t, uint64(1_000_000_000), l.Priority)
	}
	require.Equal(t, []string{"http://a.test/", "http://x/rel"}, got)
}

func TestEmptyAllowMatchesNothing(t *testing.T) {
	t.Parallel()

	engine := NewEngine(crawler.BreadthFirst, []Rule{
		{Condition: Condition{}, Action: FilterURLs{}},
	}, nil)
	links, _ := engine.Process(response("http://x/", `<a href="/a">a</a>`))
	require.Empty(t, links)
}

func TestPatternExtractIsIndependentPerResponse(t *testing.T) {
	t.Parallel()

	engine := NewEngine(crawler.BreadthFirst, []Rule{
		{
			Condition: MustCondition([]string{".*"}, nil),
			Action:    PatternExtract{Field: "title", Pattern: MustCSS("h1"), Transform: firstText},
		},
	}, nil)

	_, recA := engine.Process(response("http://x/a", `<h1> Alpha </h1>`))
	_, recB := engine.Process(response("http://x/b", `<p>no heading</p>`))
	_, recC := engine.Process(response("http://x/c", `<h1>Gamma</h1>`))

	require.Len(t, recA, 1)
	require.Equal(t, map[string]any{"title": "Alpha"}, recA[0].Data)
	require.Equal(t, "http://x/a", recA[0].Request.URL)
	require.Empty(t, recB)
	require.Len(t, recC, 1)
	require.Equal(t, map[string]any{"title": "Gamma"}, recC[0].Data)
}

func TestPatternExtractRequiresPageURLMatch(t *testing.T) {
	t.Parallel()

	engine := NewEngine(crawler.BreadthFirst, []Rule{
		{
			Condition: MustCondition([]string{"/article/"}, nil),
			Action:    PatternExtract{Field: "title", Pattern: MustCSS("h1"), Transform: firstText},
		},
	}, nil)

	_, records := engine.Process(response("http://x/index", `<h1>Home</h1>`))
	require.Empty(t, records)
	_, records = engine.Process(response("http://x/article/1", `<h1>Story</h1>`))
	require.Len(t, records, 1)
}

func TestPatternExtractMergesFieldsAndHonorsTransform(t *testing.T) {
	t.Parallel()

	all := MustCondition([]string{"."}, nil)
	engine := NewEngine(crawler.BreadthFirst, []Rule{
		{Condition: all, Action: PatternExtract{Field: "title", Pattern: MustCSS("title"), Transform: firstText}},
		{Condition: all, Action: PatternExtract{Field: "price", Pattern: MustRegex(`\$(\d+)`), Transform: func(m []string) (any, bool) {
			return m, true
		}}},
		{Condition: all, Action: PatternExtract{Field: "skipped", Pattern: MustCSS("p"), Transform: func([]string) (any, bool) {
			return nil, false
		}}},
	}, nil)

	_, records := engine.Process(response("http://x/", `<html><head><title>Shop</title></head><body><p>$10 and $25</p></body></html>`))
	require.Len(t, records, 1)
	require.Equal(t, map[string]any{"title": "Shop", "price": []string{"10", "25"}}, records[0].Data)
}

func TestPageExtractEmitsSeparateRecords(t *testing.T) {
	t.Parallel()

	engine := NewEngine(crawler.BreadthFirst, []Rule{
		{Action: PageExtract{Extract: func(p *Page) []map[string]any {
			var out []map[string]any
			p.Find("li").Each(func(_ int, s *goquery.Selection) {
				out = append(out, map[string]any{"item": s.Text()})
			})
			return out
		}}},
		{
			Condition: MustCondition([]string{"."}, nil),
			Action:    PatternExtract{Field: "title", Pattern: MustCSS("h1"), Transform: firstText},
		},
	}, nil)

	_, records := engine.Process(response("http://x/", `<h1>List</h1><ul><li>a</li><li>b</li></ul>`))
	require.Len(t, records, 3)
	require.Equal(t, map[string]any{"title": "List"}, records[0].Data)
	require.Equal(t, map[string]any{"item": "a"}, records[1].Data)
	require.Equal(t, map[string]any{"item": "b"}, records[2].Data)
}

func TestChildDepthAndPriority(t *testing.T) {
	t.Parallel()

	resp := response("http://x/", `<a href="/next">n</a>`)
	resp.Request.Depth = 2
	links, _ := NewEngine(crawler.DepthFirst, nil, nil).Process(resp)
	require.Len(t, links, 1)
	require.Equal(t, 3, links[0].Depth)
	require.Equal(t, crawler.DepthFirst.Priority(3), links[0].Priority)
}
