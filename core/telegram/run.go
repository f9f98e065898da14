// Package telegram runs a telebot bot from the core config: poller, HTTP
// client, middleware chain, routes, command menus and lifecycle hooks.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/winbingo/core/config"
	"github.com/m3rciful/winbingo/core/logger"
	tgsender "github.com/m3rciful/winbingo/core/telegram/sender"
)

// Middleware is a named global middleware registered via bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// Dispatcher is owned by the caller when set; otherwise one is built
	// from DispatcherOptions and closed on exit.
	Dispatcher        *tgsender.Dispatcher
	DispatcherOptions tgsender.Options

	HTTPClient  HTTPClientOptions
	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes the running components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot and serves updates until ctx is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	poller := BuildPoller(PollerOptionsFrom(cfg))
	httpOpts := opts.HTTPClient
	if floor := time.Duration(cfg.Telegram.LongPollTimeoutSeconds)*time.Second + 10*time.Second; httpOpts.Timeout < floor {
		httpOpts.Timeout = max(floor, defaultClientTimeout)
	}

	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(httpOpts),
		OnError: func(err error, c tele.Context) {
			attrs := []slog.Attr{slog.String("err", err.Error())}
			if c != nil {
				attrs = append(attrs, slog.Int("update_id", c.Update().ID))
			}
			logger.TG.LogAttrs(context.Background(), slog.LevelError, "tg.handler_error", attrs...)
		},
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	dispatcher := opts.Dispatcher
	ownDispatcher := dispatcher == nil
	if ownDispatcher {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	closeDispatcher := func() {
		if ownDispatcher {
			dispatcher.Close()
		}
	}
	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}

	logMode(ctx, bot, poller, buildTook, opts.DisableWebhookCleanup)

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
	InitBotCommands(bot, reg, cfg.Telegram.AdminID)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			closeDispatcher()
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
	case <-runDone:
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	closeDispatcher()
	return stopErr
}

func logMode(ctx context.Context, bot *tele.Bot, poller tele.Poller, took time.Duration, skipCleanup bool) {
	if wh, ok := poller.(*tele.Webhook); ok {
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", wh.Listen),
			slog.String("public_url", wh.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "polling mode",
		slog.String("event", "mode"),
		slog.String("mode", coreconfig.RunModeLongpoll),
		slog.Duration("timeout", poller.(*tele.LongPoller).Timeout),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	if skipCleanup {
		return
	}
	// A webhook left over from a previous deployment blocks getUpdates.
	if err := bot.RemoveWebhook(false); err != nil {
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "failed to delete webhook",
			slog.String("event", "delete_webhook"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook deleted", slog.String("event", "delete_webhook"))
}
