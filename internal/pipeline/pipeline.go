// Package pipeline post-processes extracted records through an ordered chain of
// elements and hands the result to a terminal sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/queue/memory"
)

const defaultDrainTimeout = 5 * time.Second

// Element transforms one record. Returning the record unchanged is valid.
type Element interface {
	ProcessItem(rec crawler.Record) crawler.Record
}

// ElementFunc adapts a function to Element.
type ElementFunc func(rec crawler.Record) crawler.Record

// ProcessItem calls f.
func (f ElementFunc) ProcessItem(rec crawler.Record) crawler.Record {
	return f(rec)
}

// Chain is an ordered list of elements.
type Chain []Element

// Process folds every element over rec in order.
func (c Chain) Process(rec crawler.Record) crawler.Record {
	for _, el := range c {
		rec = el.ProcessItem(rec)
	}
	return rec
}

// Config tunes the pipeline actor.
type Config struct {
	// DrainTimeout bounds how long records already queued at shutdown may take
	// to reach the sink.
	DrainTimeout time.Duration
}

// Pipeline is the actor that processes records one at a time.
type Pipeline struct {
	cfg    Config
	chain  Chain
	inbox  *memory.Mailbox[crawler.Record]
	sink   Sink
	logger *zap.Logger

	busy      atomic.Int64
	processed atomic.Uint64
	failed    atomic.Uint64
}

// New builds a Pipeline.
func New(cfg Config, chain Chain, inbox *memory.Mailbox[crawler.Record], sink Sink, logger *zap.Logger) (*Pipeline, error) {
	if inbox == nil || sink == nil {
		return nil, fmt.Errorf("%w: pipeline dependencies missing", crawler.ErrConfig)
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:    cfg,
		chain:  chain,
		inbox:  inbox,
		sink:   sink,
		logger: logger.Named("pipeline"),
	}, nil
}

// Run handles records until ctx ends, then flushes whatever is already queued.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", zap.Int("elements", len(p.chain)), zap.String("sink", p.sink.Name()))
	for {
		rec, err := p.inbox.Receive(ctx)
		if err != nil {
			if errors.Is(err, memory.ErrClosed) || ctx.Err() != nil {
				p.drain(ctx)
				p.logger.Info("pipeline stopped",
					zap.Uint64("processed", p.processed.Load()),
					zap.Uint64("failed", p.failed.Load()),
				)
				return nil
			}
			return err
		}
		p.busy.Add(1)
		p.handle(ctx, rec)
		p.busy.Add(-1)
	}
}

func (p *Pipeline) drain(ctx context.Context) {
	pending := p.inbox.Drain()
	if len(pending) == 0 {
		return
	}
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.DrainTimeout)
	defer cancel()
	for _, rec := range pending {
		p.handle(drainCtx, rec)
	}
}

func (p *Pipeline) handle(ctx context.Context, rec crawler.Record) {
	out := p.chain.Process(rec.Clone())
	if err := p.sink.Write(ctx, out); err != nil {
		p.failed.Add(1)
		p.logger.Warn("record sink failed",
			zap.String("url", out.Request.URL),
			zap.Error(err),
		)
	}
	p.processed.Add(1)
}

// Busy reports whether a record is being processed right now.
func (p *Pipeline) Busy() bool {
	return p.busy.Load() > 0
}

// Processed counts records handed to the sink, failed writes included.
func (p *Pipeline) Processed() uint64 {
	return p.processed.Load()
}

// Failed counts records the sink rejected.
func (p *Pipeline) Failed() uint64 {
	return p.failed.Load()
}
