package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/winbingo/core/config"
	coretelegram "github.com/m3rciful/winbingo/core/telegram"
)

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("WINBINGO_TEST_CONFIG", "/etc/env.yaml")
	tests := []struct {
		flag, env, def, want string
	}{
		{"/flag.yaml", "WINBINGO_TEST_CONFIG", "/def.yaml", "/flag.yaml"},
		{"", "WINBINGO_TEST_CONFIG", "/def.yaml", "/etc/env.yaml"},
		{"", "WINBINGO_UNSET_CONFIG", "/def.yaml", "/def.yaml"},
	}
	for _, tt := range tests {
		got, err := ResolveConfigPath(tt.flag, tt.env, tt.def)
		if err != nil || got != tt.want {
			t.Errorf("ResolveConfigPath(%q, %q, %q) = %q, %v; want %q", tt.flag, tt.env, tt.def, got, err, tt.want)
		}
	}
	if _, err := ResolveConfigPath("", "WINBINGO_UNSET_CONFIG", ""); err == nil {
		t.Fatalf("missing path accepted")
	}
}

type carrier struct{ cfg coreconfig.Config }

func (c *carrier) CoreConfig() *coreconfig.Config { return &c.cfg }

type fakeApp struct {
	bgStarted chan struct{}
	bgStopped bool
	closed    bool
	bgErr     error
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *fakeApp) RunBackground(ctx context.Context) error {
	close(a.bgStarted)
	if a.bgErr != nil {
		return a.bgErr
	}
	<-ctx.Done()
	a.bgStopped = true
	return nil
}

func (a *fakeApp) Close() error { a.closed = true; return nil }

func runWith(t *testing.T, app *fakeApp, run func(context.Context, coretelegram.RunOptions) error) error {
	t.Helper()
	return Run(Options{
		ConfigPath:     "/unused.yaml",
		LoadConfig:     func(string) (ConfigCarrier, error) { return &carrier{}, nil },
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram:    run,
	})
}

func TestRunStopsBackgroundWithBot(t *testing.T) {
	app := &fakeApp{bgStarted: make(chan struct{})}
	err := runWith(t, app, func(ctx context.Context, opts coretelegram.RunOptions) error {
		<-app.bgStarted
		if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
			return err
		}
		return opts.OnStop(ctx, coretelegram.Runtime{})
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !app.bgStopped || !app.closed {
		t.Fatalf("bgStopped = %v, closed = %v", app.bgStopped, app.closed)
	}
}

func TestRunBackgroundFailureStopsBot(t *testing.T) {
	boom := errors.New("listen tcp :8080: address already in use")
	app := &fakeApp{bgStarted: make(chan struct{}), bgErr: boom}
	err := runWith(t, app, func(ctx context.Context, _ coretelegram.RunOptions) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
