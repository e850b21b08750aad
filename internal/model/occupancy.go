package model

import (
	"time"
)

// OccupancyOpen represents the live binding of a slot (hot table).
type OccupancyOpen struct {
	SlotID       string    `gorm:"primaryKey;size:16"`
	OccupancyID  string    `gorm:"size:36;not null;uniqueIndex"`
	OccupantID   string    `gorm:"size:128;not null;uniqueIndex"`
	TierID       int       `gorm:"not null"`
	StartedAt    time.Time `gorm:"not null"`
	ScheduledEnd time.Time `gorm:"not null"`
	Extensions   int       `gorm:"not null"`
}

// OccupancyHistory represents a finished stay (cold table).
type OccupancyHistory struct {
	ID          int64     `gorm:"autoIncrement"`
	SlotID      string    `gorm:"size:16;not null;index;primaryKey"`
	ReleasedAt  time.Time `gorm:"not null;index;primaryKey"` // when the slot was given back
	OccupancyID string    `gorm:"size:36;not null"`
	OccupantID  string    `gorm:"size:128;not null;index"`
	TierID      int       `gorm:"not null"`
	PeriodStart time.Time `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"` // last scheduled end
	Extensions  int       `gorm:"not null"`
}
