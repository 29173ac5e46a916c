package models

import "gorm.io/gorm"

// User is a paper trading account holder.
type User struct {
	gorm.Model
	Username     string  `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email        string  `gorm:"uniqueIndex;size:100;not null" json:"email"`
	PasswordHash string  `gorm:"not null" json:"-"`
	Balance      float64 `gorm:"not null" json:"balance"`
}
