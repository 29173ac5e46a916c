package prediction

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ai-trading-assistant-go/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrModelNotFound is returned when no trained artifact exists for a symbol.
var ErrModelNotFound = errors.New("model artifact not found")

// MinTrainingSamples is the smallest labelled set Train accepts.
const MinTrainingSamples = 50

// TrainOptions tunes the gradient descent.
type TrainOptions struct {
	Epochs       int
	LearningRate float64
	L2           float64
	// TestFraction is the share of the newest samples held out for accuracy.
	TestFraction float64
}

// DefaultTrainOptions are used by the train command.
var DefaultTrainOptions = TrainOptions{
	Epochs:       800,
	LearningRate: 0.1,
	L2:           0.001,
	TestFraction: 0.2,
}

// Model is a logistic-regression classifier over standardised features.
// It is stored as YAML in the models directory.
type Model struct {
	Symbol        string    `yaml:"symbol"`
	Interval      string    `yaml:"interval"`
	Features      []string  `yaml:"features"`
	Mean          []float64 `yaml:"mean"`
	Scale         []float64 `yaml:"scale"`
	Weights       []float64 `yaml:"weights"`
	Bias          float64   `yaml:"bias"`
	TrainAccuracy float64   `yaml:"train_accuracy"`
	TestAccuracy  float64   `yaml:"test_accuracy"`
	TrainSamples  int       `yaml:"train_samples"`
	TestSamples   int       `yaml:"test_samples"`
	TrainedAt     time.Time `yaml:"trained_at"`
}

// Train fits a Model on a candle history. The split is chronological.
func Train(symbol, interval string, candles []models.PriceHistory, opts TrainOptions) (*Model, error) {
	rows, err := FeatureMatrix(candles)
	if err != nil {
		return nil, err
	}
	labels := Targets(candles)
	rows = rows[:len(labels)]
	if len(rows) < MinTrainingSamples {
		return nil, fmt.Errorf("not enough samples to train: need %d, got %d", MinTrainingSamples, len(rows))
	}

	split := int(float64(len(rows)) * (1 - opts.TestFraction))
	if split < 1 {
		split = 1
	}
	trainX, trainY := rows[:split], labels[:split]
	testX, testY := rows[split:], labels[split:]

	m := &Model{
		Symbol:       strings.ToUpper(symbol),
		Interval:     interval,
		Features:     append([]string(nil), FeatureNames...),
		TrainSamples: len(trainX),
		TestSamples:  len(testX),
		TrainedAt:    time.Now().UTC(),
	}
	m.fitScaler(trainX)

	scaled := make([][]float64, len(trainX))
	for i, x := range trainX {
		scaled[i] = m.scale(x)
	}
	m.Weights = make([]float64, len(FeatureNames))
	n := float64(len(scaled))
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grad := make([]float64, len(m.Weights))
		gradBias := 0.0
		for i, x := range scaled {
			diff := m.linear(x) - trainY[i]
			for j := range grad {
				grad[j] += diff * x[j]
			}
			gradBias += diff
		}
		for j := range m.Weights {
			m.Weights[j] -= opts.LearningRate * (grad[j]/n + opts.L2*m.Weights[j])
		}
		m.Bias -= opts.LearningRate * gradBias / n
	}

	m.TrainAccuracy = m.accuracy(trainX, trainY)
	m.TestAccuracy = m.accuracy(testX, testY)
	return m, nil
}

func (m *Model) fitScaler(rows [][]float64) {
	k := len(rows[0])
	m.Mean = make([]float64, k)
	m.Scale = make([]float64, k)
	for _, x := range rows {
		for j, v := range x {
			m.Mean[j] += v
		}
	}
	for j := range m.Mean {
		m.Mean[j] /= float64(len(rows))
	}
	for _, x := range rows {
		for j, v := range x {
			m.Scale[j] += (v - m.Mean[j]) * (v - m.Mean[j])
		}
	}
	for j := range m.Scale {
		m.Scale[j] = math.Sqrt(m.Scale[j] / float64(len(rows)))
		if m.Scale[j] == 0 {
			m.Scale[j] = 1
		}
	}
}

func (m *Model) scale(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - m.Mean[j]) / m.Scale[j]
	}
	return out
}

// linear returns the sigmoid of the weighted sum of already scaled features.
func (m *Model) linear(x []float64) float64 {
	z := m.Bias
	for j, v := range x {
		z += m.Weights[j] * v
	}
	return 1 / (1 + math.Exp(-z))
}

// ProbabilityUp returns the probability that the next close is higher.
func (m *Model) ProbabilityUp(features []float64) (float64, error) {
	if len(features) != len(m.Weights) {
		return 0, fmt.Errorf("model expects %d features, got %d", len(m.Weights), len(features))
	}
	return m.linear(m.scale(features)), nil
}

func (m *Model) accuracy(rows [][]float64, labels []float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	correct := 0
	for i, x := range rows {
		p := m.linear(m.scale(x))
		if (p >= 0.5) == (labels[i] == 1) {
			correct++
		}
	}
	return float64(correct) / float64(len(rows))
}

// ModelPath is where the artifact of a symbol lives.
func ModelPath(dir, symbol string) string {
	return filepath.Join(dir, strings.ToLower(symbol)+"_model.yaml")
}

// Save writes the model into dir and returns the file path.
func (m *Model) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create models dir: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode model: %w", err)
	}
	path := ModelPath(dir, m.Symbol)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write model: %w", err)
	}
	return path, nil
}

// LoadModel reads the artifact of a symbol from dir.
func LoadModel(dir, symbol string) (*Model, error) {
	data, err := os.ReadFile(ModelPath(dir, symbol))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if len(m.Weights) != len(FeatureNames) || len(m.Mean) != len(m.Weights) || len(m.Scale) != len(m.Weights) {
		return nil, fmt.Errorf("model %s has %d weights, want %d", symbol, len(m.Weights), len(FeatureNames))
	}
	return &m, nil
}
