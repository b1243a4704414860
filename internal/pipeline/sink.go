package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/telemetry"
)

// Sink is where processed records end up.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec crawler.Record) error
}

// Closer is implemented by sinks holding resources that must be released.
type Closer interface {
	Close(ctx context.Context) error
}

// MultiSink writes every record to each sink in order. A failing sink does not
// stop the others; their errors are joined.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink fans out to sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Name implements Sink.
func (m *MultiSink) Name() string {
	return "multi"
}

// Write implements Sink and records one metric per sink write.
func (m *MultiSink) Write(ctx context.Context, rec crawler.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil {
			telemetry.ObserveRecord(s.Name(), "error")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		telemetry.ObserveRecord(s.Name(), "success")
	}
	return errors.Join(errs...)
}

// Close closes every sink that implements Closer.
func (m *MultiSink) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(Closer); ok {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
