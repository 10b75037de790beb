package domain

import "time"

// Setting is one row of the persisted key-value settings table.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text;not null;default:''"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
