package parser

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/queue/memory"
)

// RequestSink receives each page's follow-up requests as one batch.
type RequestSink interface {
	Send(batch []crawler.Request) error
}

// RecordSink receives extracted records.
type RecordSink interface {
	Send(rec crawler.Record) error
}

// Parser is the actor that runs the engine on every response it receives.
type Parser struct {
	engine   *Engine
	inbox    *memory.Mailbox[crawler.Response]
	requests RequestSink
	records  RecordSink
	logger   *zap.Logger

	busy      atomic.Int64
	processed atomic.Uint64
}

// New builds a Parser.
func New(
	engine *Engine,
	inbox *memory.Mailbox[crawler.Response],
	requests RequestSink,
	records RecordSink,
	logger *zap.Logger,
) (*Parser, error) {
	if engine == nil || inbox == nil || requests == nil || records == nil {
		return nil, fmt.Errorf("%w: parser dependencies missing", crawler.ErrConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		engine:   engine,
		inbox:    inbox,
		requests: requests,
		records:  records,
		logger:   logger.Named("parser"),
	}, nil
}

// Run handles responses until ctx ends or the inbox is closed.
func (p *Parser) Run(ctx context.Context) error {
	p.logger.Info("parser started")
	defer p.logger.Info("parser stopped", zap.Uint64("processed", p.processed.Load()))
	for {
		resp, err := p.inbox.Receive(ctx)
		if err != nil {
			if errors.Is(err, memory.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		p.busy.Add(1)
		p.handle(resp)
		p.busy.Add(-1)
		p.processed.Add(1)
	}
}

func (p *Parser) handle(resp crawler.Response) {
	links, records := p.engine.Process(resp)
	p.logger.Debug("page parsed",
		zap.String("url", resp.Request.URL),
		zap.Int("depth", resp.Request.Depth),
		zap.Int("links", len(links)),
		zap.Int("records", len(records)),
	)
	if err := p.requests.Send(links); err != nil {
		p.logger.Warn("drop discovered links", zap.String("url", resp.Request.URL), zap.Error(err))
	}
	for _, rec := range records {
		if err := p.records.Send(rec); err != nil {
			p.logger.Warn("drop record", zap.String("url", resp.Request.URL), zap.Error(err))
		}
	}
}

// Busy reports whether a response is being processed right now.
func (p *Parser) Busy() bool {
	return p.busy.Load() > 0
}

// Processed counts responses handled so far.
func (p *Parser) Processed() uint64 {
	return p.processed.Load()
}
