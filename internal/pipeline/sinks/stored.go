package sinks

import (
	"fmt"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

// stamper assigns IDs and timestamps to records before they are written.
type stamper struct {
	ids   crawler.IDGenerator
	clock crawler.Clock
}

func (s stamper) stored(rec crawler.Record) (crawler.StoredRecord, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.StoredRecord{}, fmt.Errorf("generate record id: %w", err)
	}
	return rec.Stored(id, s.clock.Now()), nil
}
