// Package adaptive combines a plain HTTP transport with a headless browser,
// re-fetching pages that look client-rendered.
package adaptive

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/telemetry"
)

// Detector decides whether a plain response should be rendered headlessly.
type Detector interface {
	ShouldPromote(resp crawler.Response) bool
}

// Transport fetches with primary and promotes to headless when the detector
// says so. A failed headless fetch falls back to the primary response.
type Transport struct {
	primary  crawler.Transport
	headless crawler.Transport
	detector Detector
	logger   *zap.Logger
}

// New builds an adaptive transport.
func New(primary, headless crawler.Transport, detector Detector, logger *zap.Logger) (*Transport, error) {
	if primary == nil || headless == nil || detector == nil {
		return nil, errors.New("adaptive transport requires primary, headless and detector")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		primary:  primary,
		headless: headless,
		detector: detector,
		logger:   logger.Named("adaptive"),
	}, nil
}

// Fetch implements crawler.Transport.
func (t *Transport) Fetch(ctx context.Context, client crawler.ClientConfig, req crawler.FetchRequest) (crawler.Response, error) {
	resp, err := t.primary.Fetch(ctx, client, req)
	if err != nil {
		return crawler.Response{}, fmt.Errorf("primary fetch: %w", err)
	}
	if !t.detector.ShouldPromote(resp) {
		return resp, nil
	}

	telemetry.ObserveHeadlessPromotion()
	rendered, err := t.headless.Fetch(ctx, client, req)
	if err != nil {
		t.logger.Warn("headless promotion failed, keeping plain response",
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return resp, nil
	}
	return rendered, nil
}
