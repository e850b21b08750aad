package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-scheduler-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	SyncCatalog(ctx context.Context, items []CatalogItem) error
	RecordAssigned(ctx context.Context, item AssignedItem) error
	RecordExtended(ctx context.Context, occupantID string, newEnd time.Time) error
	RecordReleased(ctx context.Context, now time.Time, occupantID string) (ReleasedItem, error)
	CloseAll(ctx context.Context, now time.Time) (int, error)
	SlotsAt(ctx context.Context, tierID int, at time.Time) ([]SlotState, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// SyncCatalog upserts the tiers and slots the scheduler was built with.
func (s *gormStore) SyncCatalog(ctx context.Context, items []CatalogItem) error {
	if len(items) == 0 {
		return nil
	}

	tierMap := make(map[int]model.Tier)
	slots := make([]model.Slot, 0, len(items))
	for _, item := range items {
		if _, exists := tierMap[item.TierID]; !exists {
			tierMap[item.TierID] = model.Tier{
				ID:                 item.TierID,
				Name:               item.TierName,
				Priority:           item.Priority,
				MaxDurationMinutes: item.MaxDurationMinutes,
				Queueing:           item.Queueing,
			}
		}
		slots = append(slots, model.Slot{
			ID:     item.SlotID,
			TierID: item.TierID,
			Floor:  item.Floor,
			Seq:    item.Seq,
		})
	}

	tiers := make([]model.Tier, 0, len(tierMap))
	for _, t := range tierMap {
		tiers = append(tiers, t)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "priority", "max_duration_minutes", "queueing", "updated_at"}),
		}).Create(&tiers).Error; err != nil {
			return fmt.Errorf("batch upsert tiers failed: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tier_id", "floor", "seq", "updated_at"}),
		}).Create(&slots).Error; err != nil {
			return fmt.Errorf("batch upsert slots failed: %w", err)
		}
		return nil
	})
}

// RecordAssigned writes the hot row for a new binding, replacing any leftover row for the slot.
func (s *gormStore) RecordAssigned(ctx context.Context, item AssignedItem) error {
	open := model.OccupancyOpen{
		SlotID:       item.SlotID,
		OccupancyID:  item.OccupancyID,
		OccupantID:   item.OccupantID,
		TierID:       item.TierID,
		StartedAt:    item.StartedAt,
		ScheduledEnd: item.ScheduledEnd,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot_id"}},
		UpdateAll: true,
	}).Create(&open).Error; err != nil {
		return fmt.Errorf("failed to record assignment of %s to slot %s: %w", item.OccupantID, item.SlotID, err)
	}
	return nil
}

func (s *gormStore) RecordExtended(ctx context.Context, occupantID string, newEnd time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&model.OccupancyOpen{}).
		Where("occupant_id = ?", occupantID).
		Updates(map[string]any{
			"scheduled_end": newEnd,
			"extensions":    gorm.Expr("extensions + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to record extension for %s: %w", occupantID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("extend %s: %w", occupantID, ErrNoOpenOccupancy)
	}
	return nil
}

// RecordReleased moves the occupant's hot row into history.
func (s *gormStore) RecordReleased(ctx context.Context, now time.Time, occupantID string) (ReleasedItem, error) {
	var released ReleasedItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open model.OccupancyOpen
		if err := tx.Where("occupant_id = ?", occupantID).First(&open).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("release %s: %w", occupantID, ErrNoOpenOccupancy)
			}
			return fmt.Errorf("failed to fetch open occupancy for %s: %w", occupantID, err)
		}

		history, err := archiveRecord(tx, open, now)
		if err != nil {
			return err
		}
		if err := tx.Delete(&model.OccupancyOpen{}, "slot_id = ?", open.SlotID).Error; err != nil {
			return fmt.Errorf("failed to delete open occupancy for slot %s: %w", open.SlotID, err)
		}

		released = ReleasedItem{
			OccupancyID: open.OccupancyID,
			OccupantID:  open.OccupantID,
			SlotID:      open.SlotID,
			TierID:      open.TierID,
			PeriodStart: history.PeriodStart,
			PeriodEnd:   history.PeriodEnd,
			ReleasedAt:  history.ReleasedAt,
			Extensions:  open.Extensions,
		}
		return nil
	})
	return released, err
}

// CloseAll archives every open row. Used when the scheduler resets its cycle or shuts down.
func (s *gormStore) CloseAll(ctx context.Context, now time.Time) (int, error) {
	var openRecords []model.OccupancyOpen
	if err := s.db.WithContext(ctx).Find(&openRecords).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch open occupancy records: %w", err)
	}
	if len(openRecords) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, open := range openRecords {
			if _, err := archiveRecord(tx, open, now); err != nil {
				return err
			}
			if err := tx.Delete(&model.OccupancyOpen{}, "slot_id = ?", open.SlotID).Error; err != nil {
				return fmt.Errorf("failed to delete open occupancy for slot %s: %w", open.SlotID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(openRecords), nil
}

// SlotsAt lists the slots of a tier as they were at the given instant,
// combining archived stays with bindings still open.
func (s *gormStore) SlotsAt(ctx context.Context, tierID int, at time.Time) ([]SlotState, error) {
	db := s.db.WithContext(ctx)

	var slots []model.Slot
	if err := db.Where("tier_id = ?", tierID).Order("id").Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve slots: %w", err)
	}

	var histories []model.OccupancyHistory
	if err := db.Where("tier_id = ? AND period_start <= ? AND released_at > ?", tierID, at, at).
		Find(&histories).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve history: %w", err)
	}

	var opens []model.OccupancyOpen
	if err := db.Where("tier_id = ? AND started_at <= ?", tierID, at).Find(&opens).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve open occupancies: %w", err)
	}

	bySlot := make(map[string]SlotState, len(histories)+len(opens))
	for _, h := range histories {
		start, end := h.PeriodStart, h.PeriodEnd
		bySlot[h.SlotID] = SlotState{OccupantID: h.OccupantID, StartedAt: &start, ScheduledEnd: &end, Extensions: h.Extensions}
	}
	for _, o := range opens {
		start, end := o.StartedAt, o.ScheduledEnd
		bySlot[o.SlotID] = SlotState{OccupantID: o.OccupantID, StartedAt: &start, ScheduledEnd: &end, Extensions: o.Extensions}
	}

	response := make([]SlotState, 0, len(slots))
	for _, slot := range slots {
		state, occupied := bySlot[slot.ID]
		state.SlotID = slot.ID
		state.Floor = slot.Floor
		state.Seq = slot.Seq
		state.IsAvailable = !occupied
		response = append(response, state)
	}
	return response, nil
}

// archiveRecord creates a historical record of a finished stay.
func archiveRecord(tx *gorm.DB, recordToArchive model.OccupancyOpen, releasedAt time.Time) (model.OccupancyHistory, error) {
	historyRecord := model.OccupancyHistory{
		SlotID:      recordToArchive.SlotID,
		ReleasedAt:  releasedAt,
		OccupancyID: recordToArchive.OccupancyID,
		OccupantID:  recordToArchive.OccupantID,
		TierID:      recordToArchive.TierID,
		PeriodStart: recordToArchive.StartedAt,
		PeriodEnd:   recordToArchive.ScheduledEnd,
		Extensions:  recordToArchive.Extensions,
	}

	if err := tx.Create(&historyRecord).Error; err != nil {
		return historyRecord, fmt.Errorf("failed to archive occupancy record for slot %s: %w", recordToArchive.SlotID, err)
	}
	return historyRecord, nil
}
