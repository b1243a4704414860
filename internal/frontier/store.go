package frontier

import (
	"container/heap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

// fifoStore is a slice-backed queue. The head index avoids shifting on every
// pop; the backing array is compacted once half of it is dead.
type fifoStore struct {
	items []crawler.Request
	head  int
}

func (s *fifoStore) push(req crawler.Request) {
	s.items = append(s.items, req)
}

func (s *fifoStore) pop() (crawler.Request, bool) {
	if s.head >= len(s.items) {
		return crawler.Request{}, false
	}
	req := s.items[s.head]
	s.items[s.head] = crawler.Request{}
	s.head++
	if s.head > 64 && s.head*2 >= len(s.items) {
		s.items = append([]crawler.Request(nil), s.items[s.head:]...)
		s.head = 0
	}
	return req, true
}

func (s *fifoStore) len() int {
	return len(s.items) - s.head
}

type entry struct {
	req crawler.Request
	seq uint64
}

// priorityStore pops the highest priority first. Equal priorities come out in
// insertion order.
type priorityStore struct {
	h   entryHeap
	seq uint64
}

func (s *priorityStore) push(req crawler.Request) {
	s.seq++
	heap.Push(&s.h, entry{req: req, seq: s.seq})
}

func (s *priorityStore) pop() (crawler.Request, bool) {
	if s.h.Len() == 0 {
		return crawler.Request{}, false
	}
	e := heap.Pop(&s.h).(entry)
	return e.req, true
}

func (s *priorityStore) len() int {
	return s.h.Len()
}

type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry{}
	*h = old[:n-1]
	return e
}
