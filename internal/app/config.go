// Package app wires configuration, storage, the ledger, the chat flows and
// the background services into one runnable application.
package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	coreconfig "github.com/m3rciful/winbingo/core/config"
	coredatabase "github.com/m3rciful/winbingo/core/database"
)

// State backends.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendSQL    = "sql"
)

// StateConfig selects where conversations and processed update ids live.
type StateConfig struct {
	// Backend is memory, bolt or sql for conversations.
	Backend string `yaml:"backend" envconfig:"STATE_BACKEND"`
	// Dedupe is memory or bolt for processed update ids.
	Dedupe    string        `yaml:"dedupe" envconfig:"STATE_DEDUPE"`
	DedupeTTL time.Duration `yaml:"dedupe_ttl" envconfig:"STATE_DEDUPE_TTL"`
	BoltPath  string        `yaml:"bolt_path" envconfig:"STATE_BOLT_PATH"`
}

// WalletConfig is the ledger policy.
type WalletConfig struct {
	Currency        string            `yaml:"currency" envconfig:"WALLET_CURRENCY"`
	MinWithdrawal   decimal.Decimal   `yaml:"min_withdrawal" envconfig:"WALLET_MIN_WITHDRAWAL"`
	SignupBonus     decimal.Decimal   `yaml:"signup_bonus" envconfig:"WALLET_SIGNUP_BONUS"`
	OpTimeout       time.Duration     `yaml:"op_timeout" envconfig:"WALLET_OP_TIMEOUT"`
	Methods         []string          `yaml:"methods" envconfig:"WALLET_METHODS"`
	DepositAccounts map[string]string `yaml:"deposit_accounts" envconfig:"WALLET_DEPOSIT_ACCOUNTS"`
}

// FlowConfig is the conversation policy.
type FlowConfig struct {
	EscapeCommand string `yaml:"escape_command" envconfig:"FLOW_ESCAPE_COMMAND"`
	// StrictPhone defaults to true.
	StrictPhone  *bool         `yaml:"strict_phone" envconfig:"FLOW_STRICT_PHONE"`
	StateTTL     time.Duration `yaml:"state_ttl" envconfig:"FLOW_STATE_TTL"`
	HistoryLimit int           `yaml:"history_limit" envconfig:"FLOW_HISTORY_LIMIT"`
	Support      string        `yaml:"support" envconfig:"FLOW_SUPPORT"`
	// AppURL is the Telegram mini app opened from the main menu.
	AppURL string `yaml:"app_url" envconfig:"FLOW_APP_URL"`
}

// BingoConfig drives the live caller.
type BingoConfig struct {
	Enabled      bool            `yaml:"enabled" envconfig:"BINGO_ENABLED"`
	CallInterval time.Duration   `yaml:"call_interval" envconfig:"BINGO_CALL_INTERVAL"`
	ResetAfter   time.Duration   `yaml:"reset_after" envconfig:"BINGO_RESET_AFTER"`
	TicketPrice  decimal.Decimal `yaml:"ticket_price" envconfig:"BINGO_TICKET_PRICE"`
}

// HTTPConfig is the mini app API listener.
type HTTPConfig struct {
	Enabled         bool          `yaml:"enabled" envconfig:"HTTP_ENABLED"`
	Listen          string        `yaml:"listen" envconfig:"HTTP_LISTEN"`
	RequireInitData bool          `yaml:"require_init_data" envconfig:"HTTP_REQUIRE_INIT_DATA"`
	InitDataMaxAge  time.Duration `yaml:"init_data_max_age" envconfig:"HTTP_INIT_DATA_MAX_AGE"`
}

// SenderConfig tunes the outbound notification queue.
type SenderConfig struct {
	Workers    int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	QueueSize  int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	MaxRetries int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	State    StateConfig         `yaml:"state"`
	Wallet   WalletConfig        `yaml:"wallet"`
	Flow     FlowConfig          `yaml:"flow"`
	Bingo    BingoConfig         `yaml:"bingo"`
	HTTP     HTTPConfig          `yaml:"http"`
	Sender   SenderConfig        `yaml:"sender"`
}

// CoreConfig returns the transport and logging section.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Load reads path, overlays the environment and normalizes the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	return errors.Join(
		c.State.normalize(),
		c.Wallet.normalize(),
		c.Flow.normalize(),
		c.Bingo.normalize(),
		c.HTTP.normalize(),
		c.Sender.normalize(),
	)
}

func (s *StateConfig) normalize() error {
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = BackendSQL
	}
	s.Dedupe = strings.ToLower(strings.TrimSpace(s.Dedupe))
	if s.Dedupe == "" {
		s.Dedupe = BackendMemory
	}
	if s.DedupeTTL <= 0 {
		s.DedupeTTL = 24 * time.Hour
	}
	switch s.Backend {
	case BackendMemory, BackendBolt, BackendSQL:
	default:
		return fmt.Errorf("invalid state.backend %q; allowed: memory, bolt, sql", s.Backend)
	}
	switch s.Dedupe {
	case BackendMemory, BackendBolt:
	default:
		return fmt.Errorf("invalid state.dedupe %q; allowed: memory, bolt", s.Dedupe)
	}
	if s.UsesBolt() && strings.TrimSpace(s.BoltPath) == "" {
		return errors.New("state.bolt_path is required for the bolt backend")
	}
	return nil
}

// UsesBolt reports whether any store needs the bolt file.
func (s StateConfig) UsesBolt() bool {
	return s.Backend == BackendBolt || s.Dedupe == BackendBolt
}

func (w *WalletConfig) normalize() error {
	w.Currency = strings.ToUpper(strings.TrimSpace(w.Currency))
	if w.Currency == "" {
		w.Currency = "ETB"
	}
	if w.MinWithdrawal.IsZero() {
		w.MinWithdrawal = decimal.NewFromInt(50)
	}
	if w.MinWithdrawal.IsNegative() || w.SignupBonus.IsNegative() {
		return errors.New("wallet.min_withdrawal and wallet.signup_bonus must be >= 0")
	}
	if w.OpTimeout <= 0 {
		w.OpTimeout = 5 * time.Second
	}
	methods := w.Methods[:0]
	for _, m := range w.Methods {
		if m = strings.TrimSpace(m); m != "" {
			methods = append(methods, strings.ToLower(m))
		}
	}
	if len(methods) == 0 {
		methods = []string{"telebirr", "cbe"}
	}
	w.Methods = methods
	return nil
}

func (f *FlowConfig) normalize() error {
	f.EscapeCommand = strings.TrimPrefix(strings.TrimSpace(f.EscapeCommand), "/")
	if f.EscapeCommand == "" {
		f.EscapeCommand = "cancel"
	}
	if strings.ContainsAny(f.EscapeCommand, " \t@") {
		return fmt.Errorf("invalid flow.escape_command %q", f.EscapeCommand)
	}
	if f.StrictPhone == nil {
		strict := true
		f.StrictPhone = &strict
	}
	if f.StateTTL <= 0 {
		f.StateTTL = 30 * time.Minute
	}
	if f.HistoryLimit <= 0 {
		f.HistoryLimit = 10
	}
	return nil
}

func (b *BingoConfig) normalize() error {
	if b.CallInterval <= 0 {
		b.CallInterval = 5 * time.Second
	}
	if b.CallInterval < time.Second {
		return errors.New("bingo.call_interval must be at least 1s")
	}
	if b.ResetAfter <= 0 {
		b.ResetAfter = 10 * time.Second
	}
	if b.TicketPrice.IsZero() {
		b.TicketPrice = decimal.NewFromInt(10)
	}
	if b.TicketPrice.IsNegative() {
		return errors.New("bingo.ticket_price must be > 0")
	}
	return nil
}

func (h *HTTPConfig) normalize() error {
	if strings.TrimSpace(h.Listen) == "" {
		h.Listen = ":8080"
	}
	if h.InitDataMaxAge <= 0 {
		h.InitDataMaxAge = 24 * time.Hour
	}
	return nil
}

func (s *SenderConfig) normalize() error {
	if s.Workers <= 0 {
		s.Workers = 4
	}
	if s.QueueSize <= 0 {
		s.QueueSize = 256
	}
	if s.MaxRetries < 0 {
		return errors.New("sender.max_retries must be >= 0")
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = 3
	}
	return nil
}
