package model

import "time"

// Tier represents one priority class of the garage, usually a floor.
type Tier struct {
	ID                 int     `gorm:"primaryKey;autoIncrement:false"` // scheduler tier number
	Name               string  `gorm:"size:64;not null"`
	Priority           int     `gorm:"not null"`
	MaxDurationMinutes float64 `gorm:"not null"` // 0 = uncapped
	Queueing           bool    `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Associations
	Slots []Slot `gorm:"foreignKey:TierID"`
}
