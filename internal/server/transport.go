package server

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/config"
	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/fetcher/adaptive"
	collyfetcher "github.com/JakeFAU/rulecrawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/rulecrawler/internal/fetcher/headless"
	"github.com/JakeFAU/rulecrawler/internal/headless/detector"
	"github.com/JakeFAU/rulecrawler/internal/policy/ratelimit"
)

// transportStack is the configured transport plus the browser it may own.
type transportStack struct {
	transport crawler.Transport
	headless  *headlessfetcher.Fetcher
}

func (s *transportStack) close() {
	if s.headless != nil {
		s.headless.Close()
	}
}

func buildTransport(cfg config.Config, override crawler.Transport, logger *zap.Logger) (*transportStack, error) {
	stack := &transportStack{transport: override}
	userAgent := cfg.Downloader.Middleware.UserAgent.Value

	if stack.transport == nil {
		var primary crawler.Transport
		if cfg.Downloader.Transport != "headless" {
			primary = collyfetcher.New(collyfetcher.Config{
				UserAgent: userAgent,
				Logger:    logger.Named("colly"),
			})
		}
		if cfg.Downloader.Transport != "colly" {
			h, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
				MaxParallel:       cfg.Headless.MaxParallel,
				UserAgent:         userAgent,
				NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
				Logger:            logger.Named("headless"),
			})
			if err != nil {
				return nil, fmt.Errorf("headless transport: %w", err)
			}
			stack.headless = h
		}

		switch cfg.Downloader.Transport {
		case "colly":
			stack.transport = primary
		case "headless":
			stack.transport = stack.headless
		case "adaptive":
			t, err := adaptive.New(primary, stack.headless, detector.NewHeuristic(cfg.Headless.PromotionThresh), logger.Named("adaptive"))
			if err != nil {
				stack.close()
				return nil, fmt.Errorf("adaptive transport: %w", err)
			}
			stack.transport = t
		default:
			stack.close()
			return nil, fmt.Errorf("%w: unknown transport %q", crawler.ErrConfig, cfg.Downloader.Transport)
		}
		logger.Info("transport ready", zap.String("transport", cfg.Downloader.Transport))
	}

	if rl := cfg.Downloader.RateLimit; rl.RequestsPerSecond > 0 {
		stack.transport = ratelimit.Wrap(stack.transport, ratelimit.New(ratelimit.Config{
			DefaultRPS:   rl.RequestsPerSecond,
			DefaultBurst: rl.Burst,
		}))
		logger.Info("rate limiter enabled",
			zap.Float64("requests_per_second", rl.RequestsPerSecond),
			zap.Int("burst", rl.Burst),
		)
	}
	return stack, nil
}
