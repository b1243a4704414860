package crawler

import (
	"fmt"
	"math"
	"strings"
)

// Strategy maps a request depth to a dispatch priority.
type Strategy int

// Supported crawl strategies.
const (
	BreadthFirst Strategy = iota
	DepthFirst
	Unordered
)

const priorityScale = 1_000_000_000

// ParseStrategy accepts the canonical names plus the short bfo/dfo/basic aliases.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "breadth_first", "breadthfirst", "bfo", "bfs":
		return BreadthFirst, nil
	case "depth_first", "depthfirst", "dfo", "dfs":
		return DepthFirst, nil
	case "unordered", "basic", "fifo":
		return Unordered, nil
	default:
		return 0, fmt.Errorf("%w: unknown crawl strategy %q", ErrConfig, name)
	}
}

// String returns the canonical strategy name.
func (s Strategy) String() string {
	switch s {
	case BreadthFirst:
		return "breadth_first"
	case DepthFirst:
		return "depth_first"
	case Unordered:
		return "unordered"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Ordered reports whether the strategy needs a priority-ordered queue.
func (s Strategy) Ordered() bool {
	return s == BreadthFirst || s == DepthFirst
}

// Priority returns round(p * 1e9) where p is 1-d/(d+1) for breadth-first,
// d/(d+1) for depth-first and 1 for unordered. Negative depths are treated
// as zero.
func (s Strategy) Priority(depth int) uint64 {
	if depth < 0 {
		depth = 0
	}
	d := float64(depth)
	var p float64
	switch s {
	case BreadthFirst:
		p = 1 - d/(d+1)
	case DepthFirst:
		p = d / (d + 1)
	default:
		p = 1
	}
	return uint64(math.Round(p * priorityScale))
}
