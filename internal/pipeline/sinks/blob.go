package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/storage"
)

// Blob writes each record as a JSON object named
// <prefix>/<sha256(url)>-<id>.json, grouping records of the same page.
type Blob struct {
	store  storage.BlobStore
	hasher crawler.Hasher
	prefix string
	stamper
}

// NewBlob returns a blob sink writing below prefix.
func NewBlob(store storage.BlobStore, hasher crawler.Hasher, prefix string, ids crawler.IDGenerator, clock crawler.Clock) *Blob {
	return &Blob{store: store, hasher: hasher, prefix: prefix, stamper: stamper{ids: ids, clock: clock}}
}

// Name implements pipeline.Sink.
func (*Blob) Name() string { return "blob" }

// Write implements pipeline.Sink.
func (b *Blob) Write(ctx context.Context, rec crawler.Record) error {
	stored, err := b.stored(rec)
	if err != nil {
		return err
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	digest, err := b.hasher.Hash([]byte(stored.URL))
	if err != nil {
		return fmt.Errorf("hash url: %w", err)
	}
	name := path.Join(b.prefix, fmt.Sprintf("%s-%s.json", digest, stored.ID))
	if _, err := b.store.PutObject(ctx, name, "application/json", bytes.NewReader(data)); err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

// Close implements pipeline.Closer for stores holding a client.
func (b *Blob) Close(context.Context) error {
	c, ok := b.store.(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("close blob store: %w", err)
	}
	return nil
}
