package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

// Log writes every record to the logger at info level.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a log sink.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Name implements pipeline.Sink.
func (*Log) Name() string { return "log" }

// Write implements pipeline.Sink.
func (l *Log) Write(_ context.Context, rec crawler.Record) error {
	l.logger.Info("record",
		zap.String("url", rec.Request.URL),
		zap.Int("depth", rec.Request.Depth),
		zap.Any("data", rec.Data),
	)
	return nil
}
