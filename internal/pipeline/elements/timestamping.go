// Package elements holds the pipeline elements that can be enabled by name:
// timestamping and print.
package elements

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

// Named formats accepted by Timestamping. Anything else is a Go time layout.
const (
	FormatRFC2822     = "Rfc2822"
	FormatRFC3339     = "Rfc3339"
	FormatTimestamp   = "Timestamp"
	FormatTimestampMs = "TimestampMs"
)

const (
	rfc2822Layout = "Mon, 2 Jan 2006 15:04:05 -0700"
	rfc3339Layout = "2006-01-02T15:04:05-07:00"
)

// Timestamping writes the processing time into each record.
type Timestamping struct {
	clock  crawler.Clock
	local  bool
	format string
	field  string
}

// NewTimestamping builds the element. offset is "utc" or "local".
func NewTimestamping(clock crawler.Clock, offset, format, field string) (*Timestamping, error) {
	if clock == nil {
		return nil, fmt.Errorf("%w: timestamping needs a clock", crawler.ErrConfig)
	}
	var local bool
	switch strings.ToLower(offset) {
	case "", "utc":
	case "local":
		local = true
	default:
		return nil, fmt.Errorf("%w: unknown timestamping offset %q", crawler.ErrConfig, offset)
	}
	if format == "" {
		format = FormatTimestamp
	}
	if field == "" {
		field = "timestamp"
	}
	return &Timestamping{clock: clock, local: local, format: format, field: field}, nil
}

// ProcessItem implements pipeline.Element.
func (t *Timestamping) ProcessItem(rec crawler.Record) crawler.Record {
	now := t.clock.Now()
	if t.local {
		now = now.Local()
	} else {
		now = now.UTC()
	}
	if rec.Data == nil {
		rec.Data = make(map[string]any, 1)
	}
	rec.Data[t.field] = formatTime(now, t.format)
	return rec
}

func formatTime(ts time.Time, format string) string {
	switch format {
	case FormatRFC2822:
		return ts.Format(rfc2822Layout)
	case FormatRFC3339:
		return ts.Format(rfc3339Layout)
	case FormatTimestamp:
		return strconv.FormatInt(ts.Unix(), 10)
	case FormatTimestampMs:
		return strconv.FormatInt(ts.UnixMilli(), 10)
	default:
		return ts.Format(format)
	}
}
