package trader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ai-trading-assistant-go/internal/config"
	"ai-trading-assistant-go/internal/dca"
	"ai-trading-assistant-go/internal/grid"
	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/prices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func modelWithID(id uint) gorm.Model {
	return gorm.Model{ID: id}
}

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) SyncAll(ctx context.Context, symbols []string, timeframe string, limit int) ([]prices.SyncResult, error) {
	args := m.Called(ctx, symbols, timeframe, limit)
	res, _ := args.Get(0).([]prices.SyncResult)
	return res, args.Error(1)
}

type countingStrategy struct {
	name   string
	scouts atomic.Int32
	err    error
}

func (s *countingStrategy) Name() string { return s.name }

func (s *countingStrategy) Initialize(context.Context, StrategyContext) error { return nil }

func (s *countingStrategy) Scout(context.Context, StrategyContext) error {
	s.scouts.Add(1)
	return s.err
}

type MockGridRunner struct {
	mock.Mock
}

func (m *MockGridRunner) Active(ctx context.Context) ([]models.GridBot, error) {
	args := m.Called(ctx)
	bots, _ := args.Get(0).([]models.GridBot)
	return bots, args.Error(1)
}

func (m *MockGridRunner) RunOnce(ctx context.Context, id, userID uint, amount float64) (*grid.RunResult, error) {
	args := m.Called(ctx, id, userID, amount)
	res, _ := args.Get(0).(*grid.RunResult)
	return res, args.Error(1)
}

type MockDCARunner struct {
	mock.Mock
}

func (m *MockDCARunner) Active(ctx context.Context) ([]models.DCABot, error) {
	args := m.Called(ctx)
	bots, _ := args.Get(0).([]models.DCABot)
	return bots, args.Error(1)
}

func (m *MockDCARunner) RunScheduled(ctx context.Context, bot *models.DCABot, now time.Time) (*dca.ScheduledResult, error) {
	args := m.Called(ctx, bot.ID, now)
	res, _ := args.Get(0).(*dca.ScheduledResult)
	return res, args.Error(1)
}

func TestEngine_TickSyncsAndRunsStrategies(t *testing.T) {
	// Arrange
	syncer := new(MockSyncer)
	cfg := config.Engine{Symbols: []string{"BTCUSDT"}, Timeframe: "1h", SyncLimit: 100}
	syncer.On("SyncAll", mock.Anything, []string{"BTCUSDT"}, "1h", 100).
		Return([]prices.SyncResult{{Symbol: "BTCUSDT"}}, nil).Once()
	ok := &countingStrategy{name: "ok"}
	failing := &countingStrategy{name: "failing", err: errors.New("boom")}
	engine := NewEngine(cfg, syncer, zap.NewNop(), ok, failing)

	// Act
	engine.Tick(context.Background())

	// Assert
	syncer.AssertExpectations(t)
	assert.Equal(t, int32(1), ok.scouts.Load())
	assert.Equal(t, int32(1), failing.scouts.Load())
	status := engine.Status()
	assert.Equal(t, 1, status.Ticks)
	assert.Equal(t, []string{"ok", "failing"}, status.Strategies)
	assert.NotEmpty(t, status.UUID)
	assert.False(t, status.Running)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	return m.Called(ctx, channel, message).Error(0)
}

func TestEngine_TickPublishesSyncResults(t *testing.T) {
	// Arrange
	results := []prices.SyncResult{{Symbol: "BTCUSDT", Inserted: 3}}
	syncer := new(MockSyncer)
	syncer.On("SyncAll", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(results, nil)
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, PricesChannel, results).Return(errors.New("redis down")).Once()
	engine := NewEngine(config.Engine{Symbols: []string{"BTCUSDT"}}, syncer, zap.NewNop())
	engine.SetPublisher(publisher)

	// Act
	engine.Tick(context.Background())

	// Assert
	publisher.AssertExpectations(t)
	assert.Equal(t, 1, engine.Status().Ticks)
}

func TestEngine_SyncFailureDoesNotStopBots(t *testing.T) {
	syncer := new(MockSyncer)
	syncer.On("SyncAll", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("binance down"))
	s := &countingStrategy{name: "grid"}
	engine := NewEngine(config.Engine{Symbols: []string{"ETHUSDT"}}, syncer, zap.NewNop(), s)

	engine.Tick(context.Background())

	assert.Equal(t, int32(1), s.scouts.Load())
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	s := &countingStrategy{name: "grid"}
	engine := NewEngine(config.Engine{TickInterval: 1}, nil, zap.NewNop(), s)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()
	require.Eventually(t, func() bool { return engine.Status().Running }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.False(t, engine.Status().Running)
}

func TestGridStrategy_Scout(t *testing.T) {
	// Arrange
	runner := new(MockGridRunner)
	runner.On("Active", mock.Anything).Return([]models.GridBot{
		{Model: modelWithID(1), UserID: 10, Symbol: "BTCUSDT"},
		{Model: modelWithID(2), UserID: 11, Symbol: "ETHUSDT"},
	}, nil)
	runner.On("RunOnce", mock.Anything, uint(1), uint(10), 0.0).
		Return(&grid.RunResult{Success: true, ExecutedCount: 2}, nil).Once()
	runner.On("RunOnce", mock.Anything, uint(2), uint(11), 0.0).
		Return(nil, errors.New("no price")).Once()
	strategy := NewGridStrategy(runner)

	// Act
	err := strategy.Scout(context.Background(), StrategyContext{Logger: zap.NewNop(), Now: time.Now()})

	// Assert
	assert.NoError(t, err)
	runner.AssertExpectations(t)
}

func TestGridStrategy_ListFailure(t *testing.T) {
	runner := new(MockGridRunner)
	runner.On("Active", mock.Anything).Return(nil, errors.New("db closed"))

	err := NewGridStrategy(runner).Scout(context.Background(), StrategyContext{Logger: zap.NewNop()})

	assert.ErrorContains(t, err, "db closed")
}

func TestDCAStrategy_RunsOnlyDueBots(t *testing.T) {
	// Arrange
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)
	runner := new(MockDCARunner)
	runner.On("Active", mock.Anything).Return([]models.DCABot{
		{Model: modelWithID(1), Interval: dca.IntervalHourly, LastRunAt: &recent},
		{Model: modelWithID(2), Interval: dca.IntervalWeekly, LastRunAt: &recent},
		{Model: modelWithID(3), Interval: dca.IntervalDaily},
	}, nil)
	runner.On("RunScheduled", mock.Anything, uint(1), now).Return(&dca.ScheduledResult{BotID: 1}, nil).Once()
	runner.On("RunScheduled", mock.Anything, uint(3), now).Return(&dca.ScheduledResult{BotID: 3, Skipped: true}, nil).Once()
	strategy := NewDCAStrategy(runner)

	// Act
	err := strategy.Scout(context.Background(), StrategyContext{Logger: zap.NewNop(), Now: now})

	// Assert
	assert.NoError(t, err)
	runner.AssertExpectations(t)
	runner.AssertNumberOfCalls(t, "RunScheduled", 2)
}
