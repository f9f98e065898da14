// Package httpapi serves the mini app: live game state, the player's wallet,
// and ticket purchases.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/winbingo/core/logger"
	"github.com/m3rciful/winbingo/internal/bingo"
	"github.com/m3rciful/winbingo/internal/metrics"
	"github.com/m3rciful/winbingo/internal/wallet"
)

// Ledger is the wallet surface the API needs.
type Ledger interface {
	User(ctx context.Context, id int64) (wallet.User, error)
	History(ctx context.Context, id int64, limit int) ([]wallet.Entry, error)
	Adjust(ctx context.Context, userID int64, delta decimal.Decimal, reason string) (wallet.Entry, error)
}

// Game exposes the live bingo round.
type Game interface {
	Snapshot() bingo.Game
}

// Config controls the listener and request authentication.
type Config struct {
	Listen          string
	BotToken        string
	RequireInitData bool
	InitDataMaxAge  time.Duration
	TicketPrice     decimal.Decimal
	HistoryLimit    int
	RequestTimeout  time.Duration
}

// Server is the mini-app HTTP API.
type Server struct {
	cfg    Config
	ledger Ledger
	game   Game
	now    func() time.Time
}

// New builds a Server. game may be nil when bingo is disabled.
func New(cfg Config, ledger Ledger, game Game) *Server {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.InitDataMaxAge <= 0 {
		cfg.InitDataMaxAge = 24 * time.Hour
	}
	return &Server{cfg: cfg, ledger: ledger, game: game, now: time.Now}
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/game/sync", s.handleSync)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/user/{tid}", s.handleUser)
			r.Get("/history/{tid}", s.handleHistory)
			r.Post("/game/buy-ticket", s.handleBuyTicket)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, logger.CompHTTP, "http.listen", slog.String("addr", s.cfg.Listen))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info(shutdownCtx, logger.CompHTTP, "http.stopped")
	return nil
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.game == nil {
		writeError(w, http.StatusServiceUnavailable, "game disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.game.Snapshot())
}

type userResponse struct {
	ID         int64  `json:"telegramId,string"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	Registered bool   `json:"isRegistered"`
	Balance    string `json:"balance"`
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	tid, ok := s.pathUser(w, r)
	if !ok {
		return
	}
	u, err := s.ledger.User(r.Context(), tid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:         u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		Registered: u.Registered,
		Balance:    u.Balance.StringFixed(wallet.Scale),
	})
}

type entryResponse struct {
	ID           int64     `json:"id"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balanceAfter"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tid, ok := s.pathUser(w, r)
	if !ok {
		return
	}
	entries, err := s.ledger.History(r.Context(), tid, s.cfg.HistoryLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:           e.ID,
			Amount:       e.Amount.StringFixed(wallet.Scale),
			BalanceAfter: e.BalanceAfter.StringFixed(wallet.Scale),
			Reason:       e.Reason,
			CreatedAt:    e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type buyTicketRequest struct {
	TID   int64           `json:"tid"`
	Price decimal.Decimal `json:"price"`
}

type buyTicketResponse struct {
	Balance string `json:"balance"`
	RoomID  string `json:"roomId,omitempty"`
}

func (s *Server) handleBuyTicket(w http.ResponseWriter, r *http.Request) {
	var req buyTicketRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.TID <= 0 {
		writeError(w, http.StatusBadRequest, "missing tid")
		return
	}
	if !s.authorized(w, r, req.TID) {
		return
	}
	price := req.Price
	if price.IsZero() {
		price = s.cfg.TicketPrice
	}
	if !price.IsPositive() {
		s.fail(w, r, wallet.ErrInvalidAmount)
		return
	}

	entry, err := s.ledger.Adjust(r.Context(), req.TID, price.Neg(), wallet.ReasonBingoTicket)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := buyTicketResponse{Balance: entry.BalanceAfter.StringFixed(wallet.Scale)}
	if s.game != nil {
		resp.RoomID = s.game.Snapshot().RoomID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) pathUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	tid, err := strconv.ParseInt(chi.URLParam(r, "tid"), 10, 64)
	if err != nil || tid <= 0 {
		writeError(w, http.StatusBadRequest, "invalid tid")
		return 0, false
	}
	return tid, s.authorized(w, r, tid)
}

// fail maps wallet error kinds to status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := "internal error"
	var we *wallet.Error
	if errors.As(err, &we) {
		msg = we.Msg
	}
	if status >= http.StatusInternalServerError {
		logger.Error(r.Context(), logger.CompHTTP, "http.failed",
			slog.String("path", r.URL.Path),
			slog.String("rid", middleware.GetReqID(r.Context())),
			slog.String("err", err.Error()),
		)
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	switch wallet.KindOf(err) {
	case wallet.KindValidation:
		return http.StatusBadRequest
	case wallet.KindNotFound:
		return http.StatusNotFound
	case wallet.KindConflict:
		return http.StatusConflict
	case wallet.KindForbidden:
		return http.StatusForbidden
	case wallet.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
