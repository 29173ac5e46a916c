// Package prediction turns price history into trading signals: indicator
// scoring, EMA trend context for the bots and a trained direction model.
package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/prices"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNoPrediction is returned when a symbol has no stored prediction.
var ErrNoPrediction = errors.New("no prediction found")

// Prediction sources.
const (
	SourceModel      = "model"
	SourceIndicators = "indicators"
)

// Predicted directions.
const (
	DirectionUp   = "UP"
	DirectionDown = "DOWN"
)

// historyLimit is how many candles the service loads for any computation.
const historyLimit = 300

// CandleSource provides stored candles, oldest first.
type CandleSource interface {
	Candles(ctx context.Context, symbol string, limit int) ([]models.PriceHistory, error)
}

var _ CandleSource = (*prices.Store)(nil)

// Probabilities is the class distribution of a prediction.
type Probabilities struct {
	Down float64 `json:"down"`
	Up   float64 `json:"up"`
}

// Result is one direction prediction.
type Result struct {
	ID            uint          `json:"id,omitempty"`
	Symbol        string        `json:"symbol"`
	Prediction    int           `json:"prediction"`
	Direction     string        `json:"direction"`
	Confidence    float64       `json:"confidence"`
	ConfidencePct float64       `json:"confidence_pct"`
	CurrentPrice  float64       `json:"current_price"`
	Probabilities Probabilities `json:"probabilities"`
	Source        string        `json:"source"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Advanced bundles every signal the service can produce for a symbol.
type Advanced struct {
	Symbol     string           `json:"symbol"`
	Timeframe  string           `json:"timeframe"`
	Composite  *CompositeSignal `json:"composite,omitempty"`
	Analysis   *Analysis        `json:"analysis,omitempty"`
	EMAContext EMAContext       `json:"ema_context"`
	EMASummary string           `json:"ema_summary"`
	Prediction *Result          `json:"prediction,omitempty"`
	Errors     []string         `json:"errors,omitempty"`
}

// Service serves predictions from stored candles.
type Service struct {
	db        *gorm.DB
	candles   CandleSource
	modelsDir string
	timeframe string
	logger    *zap.Logger
}

// NewService creates a prediction Service.
func NewService(db *gorm.DB, candles CandleSource, modelsDir, timeframe string, logger *zap.Logger) *Service {
	if timeframe == "" {
		timeframe = "1h"
	}
	return &Service{
		db:        db,
		candles:   candles,
		modelsDir: modelsDir,
		timeframe: timeframe,
		logger:    logger.Named("prediction"),
	}
}

func (s *Service) history(ctx context.Context, symbol string) ([]models.PriceHistory, error) {
	candles, err := s.candles.Candles(ctx, symbol, historyLimit)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, prices.ErrNoPriceData
	}
	return candles, nil
}

// Indicators runs the indicator predictor on the stored history.
func (s *Service) Indicators(ctx context.Context, symbol string) (*Analysis, error) {
	candles, err := s.history(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return Analyze(candles)
}

// EMAContext never fails. Problems are reported through an unavailable context.
func (s *Service) EMAContext(ctx context.Context, symbol string) EMAContext {
	candles, err := s.history(ctx, symbol)
	if err != nil {
		s.logger.Debug("EMA context unavailable", zap.String("symbol", symbol), zap.Error(err))
		return Unavailable(err.Error())
	}
	return ComputeEMAContext(candles)
}

// Predict forecasts the next candle direction. Without a usable trained model
// it derives the probabilities from the indicator score.
func (s *Service) Predict(ctx context.Context, symbol string) (*Result, error) {
	symbol = prices.Normalize(symbol)
	candles, err := s.history(ctx, symbol)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Symbol:       symbol,
		CurrentPrice: candles[len(candles)-1].Close,
		Timestamp:    time.Now().UTC(),
	}

	up, ok := s.modelProbability(symbol, candles)
	if ok {
		res.Source = SourceModel
	} else {
		analysis, err := Analyze(candles)
		if err != nil {
			return nil, err
		}
		up = 0.5 + float64(analysis.ScoreBreakdown.Total)/(2*maxAnalysisScore)
		res.Source = SourceIndicators
	}

	up = math.Max(0, math.Min(1, up))
	res.Probabilities = Probabilities{Down: 1 - up, Up: up}
	res.Direction = DirectionDown
	if up >= 0.5 {
		res.Prediction = 1
		res.Direction = DirectionUp
	}
	res.Confidence = math.Max(up, 1-up)
	res.ConfidencePct = round(res.Confidence*100, 1)
	return res, nil
}

// modelProbability scores the latest candle with the stored model. It reports
// false when there is no usable model or the history is too short for it.
func (s *Service) modelProbability(symbol string, candles []models.PriceHistory) (float64, bool) {
	model, err := LoadModel(s.modelsDir, symbol)
	if errors.Is(err, ErrModelNotFound) {
		return 0, false
	}
	if err != nil {
		s.logger.Warn("Ignoring unusable model", zap.String("symbol", symbol), zap.Error(err))
		return 0, false
	}
	rows, err := FeatureMatrix(candles)
	if err != nil {
		s.logger.Debug("Model skipped", zap.String("symbol", symbol), zap.Error(err))
		return 0, false
	}
	up, err := model.ProbabilityUp(rows[len(rows)-1])
	if err != nil {
		s.logger.Warn("Ignoring unusable model", zap.String("symbol", symbol), zap.Error(err))
		return 0, false
	}
	return up, true
}

// Save stores a prediction and sets its ID.
func (s *Service) Save(ctx context.Context, res *Result) error {
	probs, err := json.Marshal(res.Probabilities)
	if err != nil {
		return fmt.Errorf("failed to encode probabilities: %w", err)
	}
	row := models.Prediction{
		Symbol:          res.Symbol,
		PredictionClass: res.Prediction,
		Direction:       res.Direction,
		Confidence:      res.Confidence,
		CurrentPrice:    res.CurrentPrice,
		Probabilities:   datatypes.JSON(probs),
		Source:          res.Source,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	res.ID = row.ID
	s.logger.Info("Prediction saved",
		zap.String("symbol", res.Symbol),
		zap.String("direction", res.Direction),
		zap.Float64("confidence", res.Confidence),
		zap.String("source", res.Source),
	)
	return nil
}

// PredictAndSave runs Predict and stores the result.
func (s *Service) PredictAndSave(ctx context.Context, symbol string) (*Result, error) {
	res, err := s.Predict(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Latest returns the newest stored prediction of a symbol.
func (s *Service) Latest(ctx context.Context, symbol string) (*models.Prediction, error) {
	var p models.Prediction
	err := s.db.WithContext(ctx).
		Where("symbol = ?", prices.Normalize(symbol)).
		Order("created_at desc, id desc").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPrediction
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction: %w", err)
	}
	return &p, nil
}

// History returns stored predictions of a symbol, newest first. limit defaults to 20.
func (s *Service) History(ctx context.Context, symbol string, limit int) ([]models.Prediction, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.Prediction
	err := s.db.WithContext(ctx).
		Where("symbol = ?", prices.Normalize(symbol)).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction history: %w", err)
	}
	return rows, nil
}

// Train fits a model on up to limit stored candles and writes it to the models dir.
func (s *Service) Train(ctx context.Context, symbol string, limit int, opts TrainOptions) (*Model, string, error) {
	symbol = prices.Normalize(symbol)
	candles, err := s.candles.Candles(ctx, symbol, limit)
	if err != nil {
		return nil, "", err
	}
	model, err := Train(symbol, s.timeframe, candles, opts)
	if err != nil {
		return nil, "", err
	}
	path, err := model.Save(s.modelsDir)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("Model trained",
		zap.String("symbol", symbol),
		zap.String("path", path),
		zap.Int("train_samples", model.TrainSamples),
		zap.Float64("train_accuracy", model.TrainAccuracy),
		zap.Float64("test_accuracy", model.TestAccuracy),
	)
	return model, path, nil
}

// Advanced combines the composite signal, the indicator analysis, the EMA
// context and the direction prediction. Parts that fail are listed in Errors.
func (s *Service) Advanced(ctx context.Context, symbol string) (*Advanced, error) {
	symbol = prices.Normalize(symbol)
	candles, err := s.history(ctx, symbol)
	if err != nil {
		return nil, err
	}

	out := &Advanced{Symbol: prices.Pair(symbol), Timeframe: s.timeframe}
	if out.Composite, err = Composite(candles); err != nil {
		out.Errors = append(out.Errors, "composite: "+err.Error())
	}
	if out.Analysis, err = Analyze(candles); err != nil {
		out.Errors = append(out.Errors, "analysis: "+err.Error())
	}
	out.EMAContext = ComputeEMAContext(candles)
	out.EMASummary = out.EMAContext.Summary()
	if out.Prediction, err = s.Predict(ctx, symbol); err != nil {
		out.Errors = append(out.Errors, "prediction: "+err.Error())
	}
	return out, nil
}
