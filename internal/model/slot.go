package model

import "time"

// Slot represents a single parking bay.
type Slot struct {
	ID        string `gorm:"primaryKey;size:16"` // e.g. "201"
	TierID    int    `gorm:"index;not null"`
	Floor     int
	Seq       int
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Tier Tier `gorm:"constraint:OnDelete:CASCADE"`
}
