package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Prediction is a stored model output for a symbol.
type Prediction struct {
	gorm.Model
	Symbol          string         `gorm:"index;size:20;not null" json:"symbol"`
	PredictionClass int            `json:"prediction_class"` // 1 = up, 0 = down
	Direction       string         `gorm:"size:8" json:"direction"`
	Confidence      float64        `json:"confidence"`
	CurrentPrice    float64        `json:"current_price"`
	Probabilities   datatypes.JSON `json:"probabilities"`
	Source          string         `gorm:"size:20" json:"source"` // "model" or "indicators"
}
