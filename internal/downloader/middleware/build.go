package middleware

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/config"
	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/downloader"
)

// Build instantiates the middleware named in cfg.MiddlewareList, in order.
func Build(cfg config.DownloaderConfig, logger *zap.Logger) (downloader.Chain, error) {
	chain := make(downloader.Chain, 0, len(cfg.MiddlewareList))
	for _, name := range cfg.MiddlewareList {
		switch name {
		case "user_agent":
			chain = append(chain, NewUserAgent(cfg.Middleware.UserAgent.Value))
		case "proxy":
			p, err := NewProxy(cfg.Middleware.Proxy.HTTP, cfg.Middleware.Proxy.HTTPS)
			if err != nil {
				return nil, err
			}
			chain = append(chain, p)
		case "headers":
			chain = append(chain, NewHeaders(cfg.Middleware.Headers))
		case "decompress":
			chain = append(chain, NewDecompress(logger))
		case "print":
			chain = append(chain, NewPrint(cfg.Middleware.Print.MaxLen, logger))
		default:
			return nil, fmt.Errorf("%w: unknown downloader middleware %q", crawler.ErrConfig, name)
		}
	}
	return chain, nil
}
