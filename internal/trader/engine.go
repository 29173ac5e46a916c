package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-trading-assistant-go/internal/cache"
	"ai-trading-assistant-go/internal/config"
	"ai-trading-assistant-go/internal/prices"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultTickInterval = 60 * time.Second

// PricesChannel receives the sync results of every tick.
const PricesChannel = "prices:synced"

// PriceSyncer refreshes stored candles before the bots run.
type PriceSyncer interface {
	SyncAll(ctx context.Context, symbols []string, timeframe string, limit int) ([]prices.SyncResult, error)
}

// Publisher broadcasts engine events to other processes.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

var (
	_ PriceSyncer = (*prices.Store)(nil)
	_ Publisher   = (*cache.RedisClient)(nil)
)

// Status describes the running engine.
type Status struct {
	UUID       string    `json:"uuid"`
	Name       string    `json:"name"`
	Strategies []string  `json:"strategies"`
	StartTime  time.Time `json:"start_time"`
	Uptime     string    `json:"uptime"`
	Ticks      int       `json:"ticks"`
	LastTick   time.Time `json:"last_tick,omitempty"`
	Running    bool      `json:"running"`
}

// Engine is the bot scheduler. Each tick syncs prices and then runs every strategy.
type Engine struct {
	UUID      string
	Name      string
	StartTime time.Time

	logger     *zap.Logger
	cfg        config.Engine
	syncer     PriceSyncer
	publisher  Publisher
	strategies []Strategy

	mu       sync.RWMutex
	running  bool
	ticks    int
	lastTick time.Time
}

// NewEngine creates a new bot engine.
func NewEngine(cfg config.Engine, syncer PriceSyncer, logger *zap.Logger, strategies ...Strategy) *Engine {
	return &Engine{
		UUID:       uuid.NewString(),
		Name:       "bot-engine",
		logger:     logger.Named("engine"),
		cfg:        cfg,
		syncer:     syncer,
		strategies: strategies,
	}
}

// SetPublisher makes every tick announce its price sync on PricesChannel.
func (e *Engine) SetPublisher(p Publisher) {
	e.publisher = p
}

func (e *Engine) interval() time.Duration {
	if e.cfg.TickInterval <= 0 {
		return defaultTickInterval
	}
	return time.Duration(e.cfg.TickInterval) * time.Second
}

// Run starts the engine's main loop and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Initializing bot engine...")
	sc := StrategyContext{Logger: e.logger, Now: time.Now()}
	for _, s := range e.strategies {
		if err := s.Initialize(ctx, sc); err != nil {
			return fmt.Errorf("failed to initialize strategy %s: %w", s.Name(), err)
		}
	}

	e.mu.Lock()
	e.StartTime = time.Now()
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	ticker := time.NewTicker(e.interval())
	defer ticker.Stop()

	e.logger.Info("Starting bot loop", zap.Duration("interval", e.interval()), zap.Int("strategies", len(e.strategies)))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping bot engine...")
			return nil
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick performs one round: a price sync followed by every strategy in parallel.
// Failures are logged and never stop the engine.
func (e *Engine) Tick(ctx context.Context) {
	now := time.Now()
	if e.syncer != nil && len(e.cfg.Symbols) > 0 {
		results, err := e.syncer.SyncAll(ctx, e.cfg.Symbols, e.cfg.Timeframe, e.cfg.SyncLimit)
		if err != nil {
			e.logger.Warn("Price sync failed", zap.Error(err))
		} else {
			e.logger.Debug("Prices synced", zap.Int("symbols", len(results)))
		}
		if e.publisher != nil && len(results) > 0 {
			if err := e.publisher.Publish(ctx, PricesChannel, results); err != nil {
				e.logger.Warn("Failed to publish price sync", zap.Error(err))
			}
		}
	}

	sc := StrategyContext{Logger: e.logger, Now: now}
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range e.strategies {
		s := s
		g.Go(func() error {
			if err := s.Scout(gctx, sc); err != nil {
				e.logger.Error("Strategy scout failed", zap.String("strategy", s.Name()), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	e.mu.Lock()
	e.ticks++
	e.lastTick = now
	e.mu.Unlock()
}

// Status reports the engine's identity and progress.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	st := Status{
		UUID:       e.UUID,
		Name:       e.Name,
		Strategies: names,
		StartTime:  e.StartTime,
		Ticks:      e.ticks,
		LastTick:   e.lastTick,
		Running:    e.running,
	}
	if e.running {
		st.Uptime = time.Since(e.StartTime).Round(time.Second).String()
	}
	return st
}
