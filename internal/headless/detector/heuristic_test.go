package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

func TestHeuristicShouldPromote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		threshold int
		resp      crawler.Response
		want      bool
	}{
		{
			name:      "empty body",
			threshold: 100,
			resp:      crawler.Response{StatusCode: 200},
			want:      true,
		},
		{
			name:      "spa marker",
			threshold: 100,
			resp:      crawler.Response{StatusCode: 200, Body: `<div id="__next"></div>`},
			want:      true,
		},
		{
			name:      "script density",
			threshold: 1000,
			resp:      crawler.Response{StatusCode: 200, Body: `<html><script>var a=1;</script><p>t</p></html>`},
			want:      true,
		},
		{
			name:      "large static page",
			threshold: 100,
			resp:      crawler.Response{StatusCode: 200, Body: "<html><p>" + strings.Repeat("text ", 100) + "</p></html>"},
			want:      false,
		},
		{
			name:      "non 200",
			threshold: 100,
			resp:      crawler.Response{StatusCode: 404, Body: "not found"},
			want:      false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, NewHeuristic(tt.threshold).ShouldPromote(tt.resp))
		})
	}
}

func TestNewHeuristicDefaultThreshold(t *testing.T) {
	t.Parallel()

	require.Equal(t, 2048, NewHeuristic(0).BodyLengthThreshold)
}

func TestScriptDensityUnclosedTag(t *testing.T) {
	t.Parallel()

	require.True(t, scriptDensityHigh("<p>x</p><script>for(;;){}"))
	require.False(t, scriptDensityHigh("<p>plain</p>"))
}
