package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/publisher"
)

// Publish sends each record as a JSON message. It backs both the "memory"
// and "pubsub" sinks.
type Publish struct {
	name string
	pub  publisher.Publisher
	stamper
}

// NewPublish wraps pub under the given sink name.
func NewPublish(name string, pub publisher.Publisher, ids crawler.IDGenerator, clock crawler.Clock) *Publish {
	return &Publish{name: name, pub: pub, stamper: stamper{ids: ids, clock: clock}}
}

// Name implements pipeline.Sink.
func (p *Publish) Name() string { return p.name }

// Write implements pipeline.Sink.
func (p *Publish) Write(ctx context.Context, rec crawler.Record) error {
	stored, err := p.stored(rec)
	if err != nil {
		return err
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	attrs := map[string]string{
		"record_id": stored.ID,
		"url":       stored.URL,
		"depth":     strconv.Itoa(stored.Depth),
	}
	if _, err := p.pub.Publish(ctx, data, attrs); err != nil {
		return fmt.Errorf("publish record: %w", err)
	}
	return nil
}

// Close implements pipeline.Closer.
func (p *Publish) Close(context.Context) error {
	if err := p.pub.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}
