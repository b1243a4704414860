package crawler

import (
	"net/http"
	"time"
)

// Request is a unit of crawl work. Seeds start at depth 0 and every discovered
// link is exactly one level deeper than the page it was found on.
type Request struct {
	URL      string `json:"url"`
	Depth    int    `json:"depth"`
	Priority uint64 `json:"priority"`
}

// NewSeed builds a depth-0 request whose priority follows the strategy.
func NewSeed(url string, strategy Strategy) Request {
	return Request{URL: url, Depth: 0, Priority: strategy.Priority(0)}
}

// Child derives a request for a link discovered on r's page.
func (r Request) Child(url string, strategy Strategy) Request {
	depth := r.Depth + 1
	return Request{URL: url, Depth: depth, Priority: strategy.Priority(depth)}
}

// Response is the result of a completed fetch. Headers may carry repeated keys.
type Response struct {
	Request    Request
	StatusCode int
	Headers    http.Header
	Body       string
	FetchedAt  time.Time
}

// Record is structured data extracted from a page. It always references the
// request whose response produced it.
type Record struct {
	Request Request
	Data    map[string]any
}

// Clone returns a copy of the record with a shallow copy of Data so elements can
// add fields without touching the caller's map.
func (r Record) Clone() Record {
	data := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		data[k] = v
	}
	return Record{Request: r.Request, Data: data}
}

// StoredRecord is the serialized form record sinks write.
type StoredRecord struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	Depth     int            `json:"depth"`
	Priority  uint64         `json:"priority"`
	Data      map[string]any `json:"data"`
	CrawledAt time.Time      `json:"crawled_at"`
}

// Stored builds the serialized form of r.
func (r Record) Stored(id string, crawledAt time.Time) StoredRecord {
	return StoredRecord{
		ID:        id,
		URL:       r.Request.URL,
		Depth:     r.Request.Depth,
		Priority:  r.Request.Priority,
		Data:      r.Data,
		CrawledAt: crawledAt,
	}
}

// DownloaderState is the downloader's counter snapshot. All counters are
// monotonically non-decreasing.
type DownloaderState struct {
	Total   uint64 `json:"total"`
	Success uint64 `json:"success"`
	Error   uint64 `json:"error"`
}

// InFlight reports fetches started but not yet finished.
func (s DownloaderState) InFlight() uint64 {
	done := s.Success + s.Error
	if done >= s.Total {
		return 0
	}
	return s.Total - done
}

// SchedulerState is the scheduler's queue snapshot.
type SchedulerState struct {
	QueueLen int `json:"queue_len"`
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests used to name stored objects.
type Hasher interface {
	Hash(data []byte) (string, error)
}
