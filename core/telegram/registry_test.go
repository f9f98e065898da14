package telegram

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/winbingo/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	for _, cmd := range []commands.Command{
		{Name: "/start", Description: "Start", Handler: noop},
		{Name: "balance", Description: "Balance", Handler: noop},
		{Name: "pending", Description: "Pending", Handler: noop, AdminOnly: true},
		{Name: "debug", Handler: noop, Hidden: true},
	} {
		if err := reg.RegisterCommand(cmd); err != nil {
			t.Fatalf("RegisterCommand(%s): %v", cmd.Name, err)
		}
	}
	if err := reg.RegisterCommand(commands.Command{Name: "START", Handler: noop}); err == nil {
		t.Fatalf("duplicate command accepted")
	}
	if err := reg.RegisterCommand(commands.Command{Name: "x"}); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("nil handler err = %v", err)
	}

	public := reg.MenuCommands(false)
	if len(public) != 2 || public[0].Text != "start" || public[1].Text != "balance" {
		t.Fatalf("public menu = %+v", public)
	}
	if admin := reg.MenuCommands(true); len(admin) != 3 {
		t.Fatalf("admin menu = %+v", admin)
	}
	if cmd, ok := reg.LookupCommand("/Balance@bot"); !ok || cmd.Name != "balance" {
		t.Fatalf("LookupCommand = %+v, %v", cmd, ok)
	}
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("menu", noop); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterCallback("menu", noop); err == nil {
		t.Fatalf("duplicate callback accepted")
	}
	if err := reg.RegisterCallback("", noop); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("empty key err = %v", err)
	}
	if _, ok := reg.Callback("menu"); !ok {
		t.Fatalf("menu callback missing")
	}
	if keys := reg.CallbackKeys(); len(keys) != 1 || keys[0] != "menu" {
		t.Fatalf("keys = %v", keys)
	}
	if reg.CallbackNotFound() == nil {
		t.Fatalf("default not-found handler missing")
	}
}

type menuRecorder struct{ calls [][]interface{} }

func (m *menuRecorder) SetCommands(opts ...interface{}) error {
	m.calls = append(m.calls, opts)
	return nil
}

func TestInitBotCommandsScopesAdminMenu(t *testing.T) {
	reg := NewRegistry()
	_ = reg.RegisterCommand(commands.Command{Name: "start", Description: "Start", Handler: noop})
	_ = reg.RegisterCommand(commands.Command{Name: "pending", Description: "Pending", Handler: noop, AdminOnly: true})

	rec := &menuRecorder{}
	InitBotCommands(rec, reg, 900)
	if len(rec.calls) != 2 {
		t.Fatalf("SetCommands calls = %d", len(rec.calls))
	}
	scope, ok := rec.calls[1][1].(tele.CommandScope)
	if !ok || scope.ChatID != 900 {
		t.Fatalf("admin scope = %#v", rec.calls[1])
	}
	if cmds := rec.calls[1][0].([]tele.Command); len(cmds) != 2 {
		t.Fatalf("admin commands = %+v", cmds)
	}
}
