package middleware

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/logging"
)

// Print logs every hook's input for debugging. Bodies longer than maxLen are
// cropped in the log output only; the response itself is not modified.
type Print struct {
	maxLen int
	logger *zap.Logger
}

// NewPrint returns a Print middleware.
func NewPrint(maxLen int, logger *zap.Logger) *Print {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Print{maxLen: maxLen, logger: logger.Named("print")}
}

// ProcessClient logs the client config.
func (p *Print) ProcessClient(cfg crawler.ClientConfig, req crawler.Request) crawler.ClientConfig {
	proxy := ""
	if cfg.Proxy != nil {
		proxy = cfg.Proxy.Redacted()
	}
	p.logger.Info("client",
		zap.String("url", req.URL),
		zap.Duration("timeout", cfg.Timeout),
		zap.String("proxy", proxy),
	)
	return cfg
}

// ProcessRequest logs the outgoing call.
func (p *Print) ProcessRequest(req crawler.FetchRequest) crawler.FetchRequest {
	p.logger.Info("request",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Any("headers", req.Headers),
	)
	return req
}

// ProcessResponse logs the response with a cropped body.
func (p *Print) ProcessResponse(resp crawler.Response) crawler.Response {
	p.logger.Info("response",
		zap.String("url", resp.Request.URL),
		zap.Int("status", resp.StatusCode),
		zap.Any("headers", resp.Headers),
		zap.String("body", logging.Crop(resp.Body, p.maxLen)),
	)
	return resp
}
