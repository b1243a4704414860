package spider

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/rulecrawler/internal/config"
	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/parser"
)

const samplePage = `<html><head>
<title> Sample </title>
<meta name="Description" content=" A page ">
<meta property="og:type" content="article">
<meta charset="utf-8">
</head><body>
<h1>Top</h1><h2> Sub </h2><h4>ignored</h4><h3></h3>
<a href="/wiki/A">A</a><a href="https://other.org/b#frag">B</a><a href="mailto:x@y">mail</a>
<span class="price">1</span><span class="price"> 2 </span><span class="price"></span>
</body></html>`

func samplePageFixture(t *testing.T) *parser.Page {
	t.Helper()
	page, err := parser.NewPage(crawler.Response{
		Request:    crawler.Request{URL: "https://example.com/wiki/Start"},
		StatusCode: 200,
		Body:       samplePage,
	})
	require.NoError(t, err)
	return page
}

func TestBuilderCollectsErrors(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder("", "1").StartURLs("ftp://x", "https://ok.example").Rule(parser.Condition{}, nil).Build()
	require.ErrorIs(t, err, crawler.ErrConfig)
	require.ErrorContains(t, err, "ftp://x")
	require.ErrorContains(t, err, "no action")
	require.ErrorContains(t, err, "name is required")
}

func TestBuilderBuildsSpider(t *testing.T) {
	t.Parallel()

	s, err := NewBuilder("wiki", "1.0").
		StartURLs("HTTPS://En.Wikipedia.org/wiki/Main_Page#top").
		Rule(parser.MustCondition([]string{"/wiki/"}, nil), parser.FilterURLs{}).
		Build()
	require.NoError(t, err)
	require.Equal(t, []string{"https://en.wikipedia.org/wiki/Main_Page"}, s.StartURLs)
	require.Len(t, s.Rules, 1)

	seeds := s.Seeds(crawler.BreadthFirst)
	require.Len(t, seeds, 1)
	require.Equal(t, 0, seeds[0].Depth)
	require.Equal(t, crawler.BreadthFirst.Priority(0), seeds[0].Priority)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	s, err := FromConfig(config.SpiderConfig{
		Name:      "wiki",
		Version:   "0.1.0",
		StartURLs: []string{"https://example.com/wiki/Start"},
		Rules: []config.RuleConfig{
			{Allow: []string{"/wiki/"}, Deny: []string{":"}, Action: "filter_urls"},
			{Allow: []string{"/wiki/"}, Action: "pattern", Field: "title", CSS: "title", Transform: "first"},
			{Allow: []string{"/wiki/"}, Action: "pattern", Field: "prices", Regex: `class="price">([^<]*)<`, Transform: "join", Separator: "|"},
			{Allow: []string{"."}, Action: "page", Extractor: "headings"},
		},
	})
	require.NoError(t, err)
	require.Len(t, s.Rules, 4)
	require.IsType(t, parser.FilterURLs{}, s.Rules[0].Action)

	engine := parser.NewEngine(crawler.BreadthFirst, s.Rules, nil)
	requests, records := engine.Process(crawler.Response{
		Request:    crawler.Request{URL: "https://example.com/wiki/Start"},
		StatusCode: 200,
		Body:       samplePage,
	})
	require.Len(t, requests, 1)
	require.Equal(t, "https://example.com/wiki/A", requests[0].URL)
	require.Len(t, records, 3)
	require.Equal(t, map[string]any{"title": "Sample", "prices": "1|2"}, records[0].Data)
	require.Equal(t, "h1", records[1].Data["level"])
}

func TestFromConfigRejectsBadRules(t *testing.T) {
	t.Parallel()

	cases := map[string]config.RuleConfig{
		"bad regex":         {Allow: []string{"("}, Action: "filter_urls"},
		"unknown action":    {Action: "scrape"},
		"missing field":     {Action: "pattern", CSS: "title"},
		"no pattern":        {Action: "pattern", Field: "x"},
		"both patterns":     {Action: "pattern", Field: "x", CSS: "a", Regex: "a"},
		"bad selector":      {Action: "pattern", Field: "x", CSS: "a[["},
		"unknown transform": {Action: "pattern", Field: "x", CSS: "a", Transform: "sum"},
		"unknown extractor": {Action: "page", Extractor: "tables"},
	}
	for name, rc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := FromConfig(config.SpiderConfig{Name: "s", Rules: []config.RuleConfig{rc}})
			require.ErrorIs(t, err, crawler.ErrConfig)
		})
	}
}

func TestTransforms(t *testing.T) {
	t.Parallel()

	matches := []string{" a ", "", "b"}
	cases := []struct {
		name string
		want any
		ok   bool
	}{
		{"first", "a", true},
		{"last", "b", true},
		{"join", "a,b", true},
		{"list", []any{"a", "b"}, true},
		{"count", 3, true},
		{"exists", true, true},
	}
	for _, tc := range cases {
		fn, err := NewTransform(tc.name, ",")
		require.NoError(t, err)
		got, ok := fn(matches)
		require.Equal(t, tc.ok, ok, tc.name)
		require.Equal(t, tc.want, got, tc.name)
	}

	for _, name := range []string{"first", "last", "join", "list"} {
		fn, err := NewTransform(name, ",")
		require.NoError(t, err)
		_, ok := fn(nil)
		require.False(t, ok, name)
	}
	got, ok := Exists(nil)
	require.True(t, ok)
	require.Equal(t, false, got)
}

func TestExtractors(t *testing.T) {
	t.Parallel()

	page := samplePageFixture(t)

	meta := Meta(page)
	require.Len(t, meta, 1)
	require.Equal(t, "Sample", meta[0]["title"])
	require.Equal(t, map[string]any{"description": "A page", "og:type": "article"}, meta[0]["meta"])

	headings := Headings(page)
	require.Equal(t, []map[string]any{
		{"level": "h1", "text": "Top"},
		{"level": "h2", "text": "Sub"},
	}, headings)

	links := Links(page)
	require.Len(t, links, 1)
	require.Equal(t, []any{"https://example.com/wiki/A", "https://other.org/b"}, links[0]["links"])
	require.Equal(t, 2, links[0]["count"])
}
