// Package bingo runs the shared live game that the mini app polls.
package bingo

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/m3rciful/winbingo/core/logger"
	"github.com/m3rciful/winbingo/internal/metrics"
)

// MaxNumber is the highest ball; every game calls 1..MaxNumber once.
const MaxNumber = 75

// Status of the live game.
type Status string

const (
	StatusRunning Status = "running"
	StatusEnded   Status = "ended"
)

// Game is a read-only snapshot. Current is 0 before the first call.
type Game struct {
	RoomID     string    `json:"roomId"`
	Called     []int     `json:"calledNumbers"`
	Current    int       `json:"currentCall,omitempty"`
	Status     Status    `json:"status"`
	NextCallAt time.Time `json:"nextCallTime"`
}

// Config sets the calling pace.
type Config struct {
	CallInterval time.Duration
	ResetAfter   time.Duration
}

// Caller draws numbers for one room at a time. Tick drives it; Snapshot may
// be called concurrently from any goroutine.
type Caller struct {
	mu      sync.RWMutex
	cfg     Config
	rnd     *rand.Rand
	game    Game
	deck    []int
	endedAt time.Time
	room    int
}

// NewCaller starts room LIVE-1 at now.
func NewCaller(cfg Config, now time.Time, seed int64) *Caller {
	if cfg.CallInterval <= 0 {
		cfg.CallInterval = 5 * time.Second
	}
	if cfg.ResetAfter <= 0 {
		cfg.ResetAfter = 10 * time.Second
	}
	c := &Caller{cfg: cfg, rnd: rand.New(rand.NewSource(seed))}
	c.newGame(now)
	return c
}

// Tick advances the game: one call while running, a fresh room once the
// reset delay after the last game has passed.
func (c *Caller) Tick(ctx context.Context, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.game.Status {
	case StatusRunning:
		if len(c.deck) == 0 {
			c.game.Status = StatusEnded
			c.endedAt = now
			logger.Info(ctx, logger.CompBingo, "bingo.game_ended",
				slog.String("room", c.game.RoomID),
				slog.Int("called", len(c.game.Called)),
			)
			return
		}
		n := c.deck[len(c.deck)-1]
		c.deck = c.deck[:len(c.deck)-1]
		c.game.Current = n
		c.game.Called = append(c.game.Called, n)
		c.game.NextCallAt = now.Add(c.cfg.CallInterval)
		metrics.BingoCalls.Inc()
		logger.Debug(ctx, logger.CompBingo, "bingo.call",
			slog.String("room", c.game.RoomID),
			slog.Int("number", n),
		)
	case StatusEnded:
		if now.Sub(c.endedAt) >= c.cfg.ResetAfter {
			c.newGame(now)
			logger.Info(ctx, logger.CompBingo, "bingo.game_started", slog.String("room", c.game.RoomID))
		}
	}
}

// Snapshot returns a copy of the current game.
func (c *Caller) Snapshot() Game {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g := c.game
	g.Called = append([]int(nil), c.game.Called...)
	return g
}

func (c *Caller) newGame(now time.Time) {
	c.room++
	c.deck = make([]int, MaxNumber)
	for i := range c.deck {
		c.deck[i] = i + 1
	}
	c.rnd.Shuffle(len(c.deck), func(i, j int) { c.deck[i], c.deck[j] = c.deck[j], c.deck[i] })
	c.game = Game{
		RoomID:     "LIVE-" + strconv.Itoa(c.room),
		Called:     make([]int, 0, MaxNumber),
		Status:     StatusRunning,
		NextCallAt: now.Add(c.cfg.CallInterval),
	}
}
