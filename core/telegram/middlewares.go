package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/winbingo/core/config"
	"github.com/m3rciful/winbingo/core/telegram/middleware"
)

// MiddlewareOptions adds optional stages to the default chain.
type MiddlewareOptions struct {
	OnLimited tele.HandlerFunc
	// Dedupe, when set, drops redelivered updates before rate limiting.
	Dedupe *middleware.DedupeOptions
	// Observe receives (kind, status) for every handled update.
	Observe middleware.ObserveFunc
}

// DefaultMiddlewares builds the shared chain: recover, logger, dedupe,
// rate limit, metrics.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if opts.Dedupe != nil && opts.Dedupe.Recorder != nil {
		mws = append(mws, Middleware{Name: "dedupe", Use: middleware.DedupeMiddleware(*opts.Dedupe)})
	}
	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, kind := range cfg.RateLimit.ExcludeUpdates {
			exclude[kind] = struct{}{}
		}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Exclude:   exclude,
				OnLimited: opts.OnLimited,
			}),
		})
	}
	return append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware(opts.Observe)})
}
