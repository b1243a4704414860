package elements

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/rulecrawler/internal/clock/system"
	"github.com/JakeFAU/rulecrawler/internal/config"
	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

var fixed = time.Date(2019, time.January, 9, 20, 5, 56, 733_000_000, time.UTC)

func TestTimestampingFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   string
	}{
		{format: FormatRFC2822, want: "Wed, 9 Jan 2019 20:05:56 +0000"},
		{format: FormatRFC3339, want: "2019-01-09T20:05:56+00:00"},
		{format: FormatTimestamp, want: "1547064356"},
		{format: FormatTimestampMs, want: "1547064356733"},
		{format: "2006/01/02", want: "2019/01/09"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()
			el, err := NewTimestamping(system.NewManual(fixed), "utc", tt.format, "")
			require.NoError(t, err)
			out := el.ProcessItem(crawler.Record{Data: map[string]any{"title": "x"}})
			require.Equal(t, tt.want, out.Data["timestamp"])
			require.Equal(t, "x", out.Data["title"])
		})
	}
}

func TestTimestampingCustomFieldAndNilData(t *testing.T) {
	t.Parallel()

	el, err := NewTimestamping(system.NewManual(fixed), "local", FormatTimestamp, "seen_at")
	require.NoError(t, err)
	out := el.ProcessItem(crawler.Record{})
	require.Equal(t, "1547064356", out.Data["seen_at"])
}

func TestTimestampingRejectsBadOffset(t *testing.T) {
	t.Parallel()

	_, err := NewTimestamping(system.NewManual(fixed), "mars", FormatTimestamp, "")
	require.ErrorIs(t, err, crawler.ErrConfig)
	_, err = NewTimestamping(nil, "utc", FormatTimestamp, "")
	require.ErrorIs(t, err, crawler.ErrConfig)
}

func TestPrintCropsStringsInLogs(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	p := NewPrint(3, zap.New(core))
	rec := crawler.Record{
		Request: crawler.Request{URL: "http://x/"},
		Data:    map[string]any{"body": strings.Repeat("a", 10), "n": 7},
	}
	require.Equal(t, rec, p.ProcessItem(rec))

	entries := logs.FilterMessage("record").All()
	require.Len(t, entries, 1)
	data, ok := entries[0].ContextMap()["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "aaa...(7)", data["body"])
	require.Equal(t, 7, data["n"])
}

func TestBuild(t *testing.T) {
	t.Parallel()

	chain, err := Build(config.PipelineConfig{
		ElementList: []string{"timestamping", "print"},
		Element: config.ElementConfig{
			Timestamping: config.TimestampingConfig{Offset: "utc", Format: FormatTimestamp, Field: "ts"},
		},
	}, system.NewManual(fixed), nil)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	out := chain.Process(crawler.Record{Data: map[string]any{}})
	require.Equal(t, "1547064356", out.Data["ts"])

	_, err = Build(config.PipelineConfig{ElementList: []string{"nope"}}, system.NewManual(fixed), nil)
	require.ErrorIs(t, err, crawler.ErrConfig)
}
