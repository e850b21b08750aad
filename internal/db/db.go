package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parking-scheduler-backend/config"
	"parking-scheduler-backend/internal/logging"
	"parking-scheduler-backend/internal/model"
)

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&model.Tier{},
		&model.Slot{},
		&model.OccupancyOpen{},
		&model.OccupancyHistory{},
		&model.PushSubscription{},
	}
}

// Open picks the gorm dialector for the configured driver.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	log := logging.Component("db")

	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Info().Str("driver", cfg.Driver).Msg("running database migrations")
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.EnableTimescale && cfg.Driver != "sqlite" {
		log.Info().Msg("TimescaleDB is enabled, applying TimescaleDB-specific DDL")
		if err := applyTimescaleDDL(db); err != nil {
			log.Warn().Err(err).Msg("failed to apply some TimescaleDB DDL, continuing without them")
		}
	}

	log.Info().Msg("database initialization complete")
	return db, nil
}

func applyTimescaleDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS timescaledb;",
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		"SELECT create_hypertable('occupancy_histories', 'released_at', if_not_exists => TRUE);",

		"ALTER TABLE occupancy_histories " +
			"ADD CONSTRAINT occupancy_histories_period_valid CHECK (period_start <= period_end);",

		// half-open stay ranges for "who was parked at T" lookups
		"CREATE INDEX IF NOT EXISTS idx_occupancy_history_period_expr ON occupancy_histories " +
			"USING GIST (slot_id, tstzrange(period_start, released_at, '[)'));",

		"CREATE INDEX IF NOT EXISTS idx_occupancy_history_slot_released ON occupancy_histories (slot_id, released_at DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
