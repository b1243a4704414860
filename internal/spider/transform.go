package spider

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

// Transform turns the matches of a pattern rule into a record value. A false
// result leaves the field unset.
type Transform func(matches []string) (any, bool)

// NewTransform looks up a transform by name. separator is only used by join.
func NewTransform(name, separator string) (Transform, error) {
	switch name {
	case "", "first":
		return First, nil
	case "last":
		return Last, nil
	case "join":
		return Join(separator), nil
	case "list":
		return List, nil
	case "count":
		return Count, nil
	case "exists":
		return Exists, nil
	default:
		return nil, fmt.Errorf("%w: unknown transform %q", crawler.ErrConfig, name)
	}
}

// First keeps the first trimmed match.
func First(matches []string) (any, bool) {
	if len(matches) == 0 {
		return nil, false
	}
	return strings.TrimSpace(matches[0]), true
}

// Last keeps the last trimmed match.
func Last(matches []string) (any, bool) {
	if len(matches) == 0 {
		return nil, false
	}
	return strings.TrimSpace(matches[len(matches)-1]), true
}

// Join concatenates the trimmed, non-empty matches.
func Join(separator string) Transform {
	return func(matches []string) (any, bool) {
		parts := trimmed(matches)
		if len(parts) == 0 {
			return nil, false
		}
		return strings.Join(parts, separator), true
	}
}

// List keeps every trimmed, non-empty match.
func List(matches []string) (any, bool) {
	parts := trimmed(matches)
	if len(parts) == 0 {
		return nil, false
	}
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, true
}

// Count records how many matches were found, including zero.
func Count(matches []string) (any, bool) {
	return len(matches), true
}

// Exists records whether anything matched.
func Exists(matches []string) (any, bool) {
	return len(matches) > 0, true
}

func trimmed(matches []string) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if s := strings.TrimSpace(m); s != "" {
			out = append(out, s)
		}
	}
	return out
}
