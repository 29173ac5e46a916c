package trader

import (
	"context"
	"fmt"
	"time"

	"ai-trading-assistant-go/internal/dca"
	"ai-trading-assistant-go/internal/grid"
	"ai-trading-assistant-go/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxParallelBots bounds how many bots of one kind run at the same time.
const maxParallelBots = 4

// GridRunner lists and runs grid bots.
type GridRunner interface {
	Active(ctx context.Context) ([]models.GridBot, error)
	RunOnce(ctx context.Context, id, userID uint, amountPerOrder float64) (*grid.RunResult, error)
}

// DCARunner lists and runs DCA bots on schedule.
type DCARunner interface {
	Active(ctx context.Context) ([]models.DCABot, error)
	RunScheduled(ctx context.Context, bot *models.DCABot, now time.Time) (*dca.ScheduledResult, error)
}

var (
	_ GridRunner = (*grid.Service)(nil)
	_ DCARunner  = (*dca.Service)(nil)
)

// GridStrategy runs every active grid bot once per tick.
type GridStrategy struct {
	bots GridRunner
}

// NewGridStrategy creates a GridStrategy.
func NewGridStrategy(bots GridRunner) *GridStrategy {
	return &GridStrategy{bots: bots}
}

func (s *GridStrategy) Name() string { return "grid" }

func (s *GridStrategy) Initialize(ctx context.Context, sc StrategyContext) error {
	bots, err := s.bots.Active(ctx)
	if err != nil {
		return fmt.Errorf("could not load grid bots: %w", err)
	}
	sc.Logger.Info("Grid strategy ready", zap.Int("active_bots", len(bots)))
	return nil
}

func (s *GridStrategy) Scout(ctx context.Context, sc StrategyContext) error {
	bots, err := s.bots.Active(ctx)
	if err != nil {
		return fmt.Errorf("could not load grid bots: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelBots)
	for _, bot := range bots {
		bot := bot
		g.Go(func() error {
			l := sc.Logger.With(zap.Uint("grid_bot_id", bot.ID), zap.String("symbol", bot.Symbol))
			res, err := s.bots.RunOnce(gctx, bot.ID, bot.UserID, 0)
			if err != nil {
				l.Warn("Grid bot run failed", zap.Error(err))
				return nil
			}
			switch {
			case res.Stopped:
				l.Info("Grid bot stopped", zap.String("reason", res.Reason))
			case res.Paused:
				l.Debug("Grid bot paused", zap.String("reason", res.Reason))
			case res.ExecutedCount > 0:
				l.Info("Grid bot filled levels", zap.Int("executed", res.ExecutedCount))
			}
			return nil
		})
	}
	return g.Wait()
}

// DCAStrategy runs every DCA bot whose schedule is due.
type DCAStrategy struct {
	bots DCARunner
}

// NewDCAStrategy creates a DCAStrategy.
func NewDCAStrategy(bots DCARunner) *DCAStrategy {
	return &DCAStrategy{bots: bots}
}

func (s *DCAStrategy) Name() string { return "dca" }

func (s *DCAStrategy) Initialize(ctx context.Context, sc StrategyContext) error {
	bots, err := s.bots.Active(ctx)
	if err != nil {
		return fmt.Errorf("could not load DCA bots: %w", err)
	}
	sc.Logger.Info("DCA strategy ready", zap.Int("active_bots", len(bots)))
	return nil
}

func (s *DCAStrategy) Scout(ctx context.Context, sc StrategyContext) error {
	bots, err := s.bots.Active(ctx)
	if err != nil {
		return fmt.Errorf("could not load DCA bots: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelBots)
	for i := range bots {
		bot := &bots[i]
		if !dca.Due(bot, sc.Now) {
			continue
		}
		g.Go(func() error {
			l := sc.Logger.With(zap.Uint("dca_bot_id", bot.ID), zap.String("symbol", bot.Symbol))
			res, err := s.bots.RunScheduled(gctx, bot, sc.Now)
			if err != nil {
				l.Warn("DCA bot run failed", zap.Error(err))
				return nil
			}
			switch {
			case res.Stopped:
				l.Info("DCA bot stopped", zap.String("reason", res.Reason))
			case res.Skipped:
				l.Debug("DCA cycle skipped", zap.String("reason", res.Reason))
			default:
				l.Info("DCA cycle executed", zap.String("reason", res.Reason))
			}
			return nil
		})
	}
	return g.Wait()
}
