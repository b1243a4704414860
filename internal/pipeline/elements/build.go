package elements

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/config"
	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/pipeline"
)

// Build instantiates the elements named in cfg.ElementList, in order.
func Build(cfg config.PipelineConfig, clock crawler.Clock, logger *zap.Logger) (pipeline.Chain, error) {
	chain := make(pipeline.Chain, 0, len(cfg.ElementList))
	for _, name := range cfg.ElementList {
		switch name {
		case "timestamping":
			ts := cfg.Element.Timestamping
			el, err := NewTimestamping(clock, ts.Offset, ts.Format, ts.Field)
			if err != nil {
				return nil, err
			}
			chain = append(chain, el)
		case "print":
			chain = append(chain, NewPrint(cfg.Element.Print.MaxLen, logger))
		default:
			return nil, fmt.Errorf("%w: unknown pipeline element %q", crawler.ErrConfig, name)
		}
	}
	return chain, nil
}
