// Package storage defines the persistence interfaces used by the record sinks.
// Implementations live in the backend subpackages.
package storage

import (
	"context"
	"io"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

// BlobStore writes opaque objects and returns a URI for each.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// RecordStore persists serialized records as rows.
type RecordStore interface {
	SaveRecord(ctx context.Context, rec crawler.StoredRecord) error
	Close() error
}
