package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/m3rciful/winbingo/core/bootstrap"
	coreconfig "github.com/m3rciful/winbingo/core/config"
	"github.com/m3rciful/winbingo/internal/conversation"
)

func testConfig(t *testing.T, backend string) *Config {
	t.Helper()
	dir := t.TempDir()
	var cfg Config
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.AdminID = 42
	cfg.RateLimit.IntervalMS = 500
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(dir, "winbingo.db")
	cfg.State.Backend = backend
	cfg.State.Dedupe = BackendBolt
	cfg.State.BoltPath = filepath.Join(dir, "state.bolt")
	cfg.Bingo.Enabled = true
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = "127.0.0.1:0"
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return &cfg
}

func buildApp(t *testing.T, cfg *Config) *App {
	t.Helper()
	a, err := build(cfg, bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		LoggerInit: func(*coreconfig.Config) error { return nil },
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return a
}

func TestBuildSelectsStateBackend(t *testing.T) {
	cases := []struct {
		backend string
		check   func(conversation.Store) bool
	}{
		{BackendMemory, func(s conversation.Store) bool {
			_, ok := s.(*conversation.Memory)
			return ok
		}},
		{BackendBolt, func(s conversation.Store) bool {
			_, ok := s.(*conversation.Bolt)
			return ok
		}},
		{BackendSQL, func(s conversation.Store) bool {
			_, ok := s.(*conversation.SQL)
			return ok
		}},
	}
	for _, tc := range cases {
		t.Run(tc.backend, func(t *testing.T) {
			a := buildApp(t, testConfig(t, tc.backend))
			defer a.Close()
			if !tc.check(a.states) {
				t.Fatalf("states = %T", a.states)
			}
			if a.caller == nil || a.api == nil {
				t.Fatalf("bingo and http should be built when enabled")
			}
			// expire, purge, bingo tick
			if got := a.jobs.Len(); got != 3 {
				t.Fatalf("jobs = %d, want 3", got)
			}
		})
	}
}

func TestTelegramRunOptions(t *testing.T) {
	a := buildApp(t, testConfig(t, BackendSQL))
	defer a.Close()

	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("run options: %v", err)
	}
	if opts.Dispatcher != a.dispatch || opts.Registry == nil {
		t.Fatalf("dispatcher or registry not wired")
	}
	if len(opts.Routes) == 0 {
		t.Fatalf("no routes")
	}
	var names []string
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	want := []string{"recover", "logger", "dedupe", "rate_limit", "metrics"}
	if len(names) != len(want) {
		t.Fatalf("middlewares = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("middlewares = %v, want %v", names, want)
		}
	}
	if _, ok := opts.Registry.LookupCommand("withdraw"); !ok {
		t.Fatalf("withdraw command not registered")
	}
}

func TestRunBackgroundStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, BackendMemory)
	cfg.HTTP.Enabled = false
	a := buildApp(t, cfg)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunBackground(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run background: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("background did not stop")
	}
}
