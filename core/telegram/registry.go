package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/winbingo/core/logger"
	"github.com/m3rciful/winbingo/core/telegram/commands"
)

// ErrInvalidRegistration is returned for commands or callbacks missing a
// name or handler.
var ErrInvalidRegistration = errors.New("telegram: invalid registration")

// Registry holds bot commands in menu order and callback handlers by
// button unique id.
type Registry struct {
	mu               sync.RWMutex
	order            []string
	commands         map[string]commands.Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

// NewRegistry creates an empty Registry with a default unknown-button reply.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

// RegisterCommand adds cmd under its normalized name.
func (r *Registry) RegisterCommand(cmd commands.Command) error {
	name := commands.Normalize(cmd.Name)
	if name == "" || cmd.Handler == nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", cmd.Name),
			slog.Bool("handler_nil", cmd.Handler == nil),
		)
		return fmt.Errorf("%w: command %q", ErrInvalidRegistration, cmd.Name)
	}
	cmd.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.duplicate",
			slog.String("name", name),
		)
		return fmt.Errorf("command already registered: %s", name)
	}
	r.commands[name] = cmd
	r.order = append(r.order, name)
	return nil
}

// Commands returns registered commands in registration order.
func (r *Registry) Commands() []commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]commands.Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// LookupCommand finds a command by name, with or without the slash.
func (r *Registry) LookupCommand(name string) (commands.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[commands.Normalize(name)]
	return cmd, ok
}

// MenuCommands lists commands for the Telegram command menu. With admin set
// the admin-only commands are included.
func (r *Registry) MenuCommands(admin bool) []tele.Command {
	var list []tele.Command
	for _, cmd := range r.Commands() {
		if cmd.Hidden || (cmd.AdminOnly && !admin) || cmd.Description == "" {
			continue
		}
		list = append(list, tele.Command{Text: cmd.Name, Description: cmd.Description})
	}
	return list
}

// RegisterCallback maps a button unique id to handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.callback.skip",
			slog.String("key", key),
			slog.Bool("handler_nil", handler == nil),
		)
		return fmt.Errorf("%w: callback %q", ErrInvalidRegistration, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.callback.duplicate",
			slog.String("key", key),
		)
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// Callback returns the handler registered for key.
func (r *Registry) Callback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// CallbackKeys returns the registered keys, sorted.
func (r *Registry) CallbackKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown buttons.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown buttons.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// CommandMenuAPI is the part of tele.Bot used to publish command menus.
type CommandMenuAPI interface {
	SetCommands(opts ...interface{}) error
}

// InitBotCommands publishes the public command menu and, when adminID is
// set, a menu with admin commands scoped to the admin chat.
func InitBotCommands(bot CommandMenuAPI, reg *Registry, adminID int64) {
	ctx := context.Background()
	if err := bot.SetCommands(reg.MenuCommands(false)); err != nil {
		logger.TWire.LogAttrs(ctx, slog.LevelError, "register.commands.set_failed",
			slog.String("scope", "default"),
			slog.String("err", err.Error()),
		)
	}
	if adminID == 0 {
		return
	}
	scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: adminID}
	if err := bot.SetCommands(reg.MenuCommands(true), scope); err != nil {
		logger.TWire.LogAttrs(ctx, slog.LevelError, "register.commands.set_failed",
			slog.String("scope", "admin"),
			slog.String("err", err.Error()),
		)
	}
}
