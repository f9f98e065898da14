package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	bolt "go.etcd.io/bbolt"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/winbingo/core/bootstrap"
	"github.com/m3rciful/winbingo/core/logger"
	coretelegram "github.com/m3rciful/winbingo/core/telegram"
	tghelpers "github.com/m3rciful/winbingo/core/telegram/helpers"
	"github.com/m3rciful/winbingo/core/telegram/middleware"
	tgsender "github.com/m3rciful/winbingo/core/telegram/sender"
	"github.com/m3rciful/winbingo/internal/bingo"
	"github.com/m3rciful/winbingo/internal/bot"
	"github.com/m3rciful/winbingo/internal/conversation"
	"github.com/m3rciful/winbingo/internal/flow"
	"github.com/m3rciful/winbingo/internal/httpapi"
	"github.com/m3rciful/winbingo/internal/idempotence"
	"github.com/m3rciful/winbingo/internal/jobs"
	"github.com/m3rciful/winbingo/internal/metrics"
	"github.com/m3rciful/winbingo/internal/store"
	"github.com/m3rciful/winbingo/internal/wallet"
)

const (
	expireSchedule = "@every 5m"
	purgeSchedule  = "@every 1h"
	jobTimeout     = 30 * time.Second
)

// App owns every long lived component of the bot.
type App struct {
	cfg *Config

	db   *sqlx.DB
	bolt *bolt.DB

	ledger   *wallet.Service
	states   conversation.Store
	updates  idempotence.Recorder
	flow     *flow.Controller
	caller   *bingo.Caller
	dispatch *tgsender.Dispatcher
	bot      *bot.Bot
	api      *httpapi.Server
	jobs     *jobs.Scheduler
}

// New bootstraps storage and assembles the application.
func New(cfg *Config) (*App, error) {
	return build(cfg, bootstrap.Options{Config: cfg.CoreConfig(), Database: cfg.Database})
}

func build(cfg *Config, bo bootstrap.Options) (a *App, err error) {
	res, err := bootstrap.Run(bo)
	if err != nil {
		return nil, err
	}
	a = &App{cfg: cfg, db: res.DB}
	defer func() {
		if err != nil {
			err = errors.Join(err, a.Close())
			a = nil
		}
	}()

	if cfg.State.UsesBolt() {
		a.bolt, err = bolt.Open(cfg.State.BoltPath, 0o600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, fmt.Errorf("app: open bolt %s: %w", cfg.State.BoltPath, err)
		}
	}

	repo := store.New(a.db)
	if a.states, err = a.openStates(repo); err != nil {
		return nil, err
	}
	if a.updates, err = a.openRecorder(); err != nil {
		return nil, err
	}

	adminID := cfg.Telegram.AdminID
	a.ledger = wallet.New(repo, wallet.Config{
		AdminID:       adminID,
		MinWithdrawal: cfg.Wallet.MinWithdrawal,
		SignupBonus:   cfg.Wallet.SignupBonus,
		OpTimeout:     cfg.Wallet.OpTimeout,
		Methods:       cfg.Wallet.Methods,
	})
	a.flow = flow.New(flow.Config{
		AdminID:         adminID,
		Currency:        cfg.Wallet.Currency,
		MinWithdrawal:   cfg.Wallet.MinWithdrawal,
		Methods:         cfg.Wallet.Methods,
		DepositAccounts: cfg.Wallet.DepositAccounts,
		EscapeCommand:   cfg.Flow.EscapeCommand,
		StrictPhone:     *cfg.Flow.StrictPhone,
		HistoryLimit:    cfg.Flow.HistoryLimit,
		Support:         cfg.Flow.Support,
		AppURL:          cfg.Flow.AppURL,
	}, a.ledger, a.states)

	a.dispatch = tgsender.NewDispatcher(tgsender.Options{
		Workers:    cfg.Sender.Workers,
		QueueSize:  cfg.Sender.QueueSize,
		MaxRetries: cfg.Sender.MaxRetries,
		OnFailure: func(action string, _ error) {
			metrics.SenderFailures.WithLabelValues(action).Inc()
		},
	})
	a.bot = bot.New(a.flow, tghelpers.NewSender(a.dispatch), adminID)

	now := time.Now()
	if cfg.Bingo.Enabled {
		a.caller = bingo.NewCaller(bingo.Config{
			CallInterval: cfg.Bingo.CallInterval,
			ResetAfter:   cfg.Bingo.ResetAfter,
		}, now, now.UnixNano())
	}
	if cfg.HTTP.Enabled {
		var game httpapi.Game
		if a.caller != nil {
			game = a.caller
		}
		a.api = httpapi.New(httpapi.Config{
			Listen:          cfg.HTTP.Listen,
			BotToken:        cfg.Telegram.Token,
			RequireInitData: cfg.HTTP.RequireInitData,
			InitDataMaxAge:  cfg.HTTP.InitDataMaxAge,
			TicketPrice:     cfg.Bingo.TicketPrice,
			HistoryLimit:    cfg.Flow.HistoryLimit,
		}, a.ledger, game)
	}

	if a.jobs, err = a.schedule(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) openStates(repo *store.Repo) (conversation.Store, error) {
	switch a.cfg.State.Backend {
	case BackendMemory:
		return conversation.NewMemory(), nil
	case BackendBolt:
		return conversation.NewBolt(a.bolt)
	default:
		return conversation.NewSQL(repo), nil
	}
}

func (a *App) openRecorder() (idempotence.Recorder, error) {
	if a.cfg.State.Dedupe == BackendBolt {
		return idempotence.NewBolt(a.bolt)
	}
	return idempotence.NewMemory(a.cfg.State.DedupeTTL), nil
}

func (a *App) schedule() (*jobs.Scheduler, error) {
	s := jobs.New(jobTimeout)
	utcNow := func() time.Time { return time.Now().UTC() }
	if err := s.RegisterTask("conversations.expire", expireSchedule, true,
		jobs.ExpireConversations(a.states, a.cfg.Flow.StateTTL, utcNow)); err != nil {
		return nil, err
	}
	if err := s.RegisterTask("updates.purge", purgeSchedule, true,
		jobs.PurgeUpdates(a.updates, a.cfg.State.DedupeTTL, utcNow)); err != nil {
		return nil, err
	}
	if a.caller != nil {
		every := fmt.Sprintf("@every %s", a.cfg.Bingo.CallInterval)
		if err := s.RegisterTask("bingo.tick", every, true, jobs.BingoTick(a.caller, time.Now)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// TelegramRunOptions wires the bot into the shared telegram runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}
	core := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config:     core,
		Registry:   reg,
		Dispatcher: a.dispatch,
		Middlewares: coretelegram.DefaultMiddlewares(core, coretelegram.MiddlewareOptions{
			OnLimited: func(c tele.Context) error {
				if c.Callback() != nil {
					return c.Respond(&tele.CallbackResponse{Text: "Slow down"})
				}
				return nil
			},
			Dedupe: &middleware.DedupeOptions{Recorder: a.updates},
			Observe: func(kind, status string) {
				metrics.TelegramUpdates.WithLabelValues(kind, status).Inc()
			},
		}),
		Routes: a.bot.Routes(reg),
	}, nil
}

// RunBackground runs the scheduler and the HTTP API until ctx is done.
func (a *App) RunBackground(ctx context.Context) error {
	a.jobs.Start()
	logger.Info(ctx, logger.CompJobs, "jobs.started", slog.Int("tasks", a.jobs.Len()))
	if a.api == nil {
		<-ctx.Done()
		return nil
	}
	return a.api.Run(ctx)
}

// Close stops the scheduler and releases every handle.
func (a *App) Close() error {
	if a.jobs != nil {
		a.jobs.Stop()
	}
	if a.dispatch != nil {
		a.dispatch.Close()
	}
	var errs []error
	if a.bolt != nil {
		errs = append(errs, a.bolt.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
