package sinks

import (
	"context"
	"fmt"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/storage"
)

// Store inserts each record as a row. It backs the "postgres" and "sqlite"
// sinks.
type Store struct {
	name  string
	store storage.RecordStore
	stamper
}

// NewStore wraps a record store under the given sink name.
func NewStore(name string, store storage.RecordStore, ids crawler.IDGenerator, clock crawler.Clock) *Store {
	return &Store{name: name, store: store, stamper: stamper{ids: ids, clock: clock}}
}

// Name implements pipeline.Sink.
func (s *Store) Name() string { return s.name }

// Write implements pipeline.Sink.
func (s *Store) Write(ctx context.Context, rec crawler.Record) error {
	stored, err := s.stored(rec)
	if err != nil {
		return err
	}
	if err := s.store.SaveRecord(ctx, stored); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// Close implements pipeline.Closer.
func (s *Store) Close(context.Context) error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close record store: %w", err)
	}
	return nil
}
