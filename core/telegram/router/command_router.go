package router

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/winbingo/core/logger"
	tg "github.com/m3rciful/winbingo/core/telegram"
	"github.com/m3rciful/winbingo/core/telegram/commands"
	"github.com/m3rciful/winbingo/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command to its slash endpoint.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for _, cmd := range cmds {
		h := commandHandler(cmd)
		if cmd.AdminOnly {
			h = adminOnly(h)
		}
		routes = append(routes, tg.Route{Endpoint: commands.Endpoint(cmd.Name), Handler: wrap(h)})
	}

	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "tg.wire",
		slog.String("event", "commands"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.CallbackKeys())),
	)
	return routes
}

func commandHandler(cmd commands.Command) tele.HandlerFunc {
	name := normalizeHandlerName(cmd.Name)
	return func(c tele.Context) error {
		return handleWithSummary(c, name, func() error { return cmd.Handler(c) })
	}
}
