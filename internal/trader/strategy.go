package trader

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StrategyContext provides the strategy with access to the core components.
type StrategyContext struct {
	Logger *zap.Logger
	Now    time.Time
}

// Strategy defines the interface for a bot strategy run by the engine.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Initialize gives the strategy a chance to perform setup tasks.
	Initialize(ctx context.Context, sc StrategyContext) error

	// Scout is the main logic of the strategy, called once per engine tick.
	Scout(ctx context.Context, sc StrategyContext) error
}
