package elements

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/logging"
)

// Print logs each record with long string values cropped.
type Print struct {
	maxLen int
	logger *zap.Logger
}

// NewPrint returns a Print element.
func NewPrint(maxLen int, logger *zap.Logger) *Print {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Print{maxLen: maxLen, logger: logger.Named("print")}
}

// ProcessItem implements pipeline.Element.
func (p *Print) ProcessItem(rec crawler.Record) crawler.Record {
	fields := make(map[string]any, len(rec.Data))
	for k, v := range rec.Data {
		if s, ok := v.(string); ok {
			v = logging.Crop(s, p.maxLen)
		}
		fields[k] = v
	}
	p.logger.Info("record",
		zap.String("url", rec.Request.URL),
		zap.Int("depth", rec.Request.Depth),
		zap.Any("data", fields),
	)
	return rec
}
