// Package frontier holds pending crawl requests and the set of URLs that have
// already been handed out. A Frontier is owned by a single goroutine (the
// scheduler) and is not safe for concurrent use.
package frontier

import "github.com/JakeFAU/rulecrawler/internal/crawler"

// Frontier orders pending requests and suppresses re-dispatch of visited URLs.
//
// Push only consults the visited set, so two pushes of the same URL before it
// is popped both stay queued until Pop filters the second one. Len counts those
// transient duplicates.
type Frontier struct {
	pending store
	visited map[string]struct{}
}

type store interface {
	push(req crawler.Request)
	pop() (crawler.Request, bool)
	len() int
}

// New returns a FIFO frontier for the unordered strategy and a max-priority
// frontier for breadth-first and depth-first crawls.
func New(strategy crawler.Strategy) *Frontier {
	var pending store
	if strategy.Ordered() {
		pending = &priorityStore{}
	} else {
		pending = &fifoStore{}
	}
	return &Frontier{pending: pending, visited: make(map[string]struct{})}
}

// Push queues req unless its URL was already popped. It reports whether the
// request was accepted.
func (f *Frontier) Push(req crawler.Request) bool {
	if _, seen := f.visited[req.URL]; seen {
		return false
	}
	f.pending.push(req)
	return true
}

// Pop returns the next unvisited request and marks it visited. Visited entries
// found on the way are discarded.
func (f *Frontier) Pop() (crawler.Request, bool) {
	for {
		req, ok := f.pending.pop()
		if !ok {
			return crawler.Request{}, false
		}
		if _, seen := f.visited[req.URL]; seen {
			continue
		}
		f.visited[req.URL] = struct{}{}
		return req, true
	}
}

// Len reports the raw number of queued entries, duplicates included.
func (f *Frontier) Len() int {
	return f.pending.len()
}

// Visited reports whether url has been popped.
func (f *Frontier) Visited(url string) bool {
	_, ok := f.visited[url]
	return ok
}

// VisitedCount reports how many distinct URLs have been popped.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}
