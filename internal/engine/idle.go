package engine

import (
	"context"
	"time"
)

// activity is compared between polls; any change restarts the idle clock.
type activity struct {
	total, success, failed uint64
	parsed, records        uint64
	recordErrors           uint64
}

// watchIdle returns true once nothing is queued, nothing is in flight and no
// counter has moved for IdleTimeout. It returns false when ctx ends first.
func (e *Engine) watchIdle(ctx context.Context) bool {
	poll := e.opts.IdleTimeout / 10
	poll = max(poll, minIdlePoll)
	poll = min(poll, maxIdlePoll)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var (
		last      activity
		idleSince time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
		now := time.Now()
		cur, quiet := e.sample()
		if !quiet || cur != last {
			last = cur
			idleSince = time.Time{}
			continue
		}
		if idleSince.IsZero() {
			idleSince = now
			continue
		}
		if now.Sub(idleSince) >= e.opts.IdleTimeout {
			return true
		}
	}
}

func (e *Engine) sample() (activity, bool) {
	st := e.State()
	cur := activity{
		total:        st.Downloader.Total,
		success:      st.Downloader.Success,
		failed:       st.Downloader.Error,
		parsed:       st.Parsed,
		records:      st.Records,
		recordErrors: st.RecordErrors,
	}
	quiet := st.Scheduler.QueueLen == 0 &&
		st.Downloader.InFlight() == 0 &&
		e.batches.Len() == 0 &&
		e.requests.Len() == 0 &&
		e.responses.Len() == 0 &&
		e.records.Len() == 0 &&
		!e.parser.Busy() &&
		!e.pipeline.Busy()
	return cur, quiet
}
