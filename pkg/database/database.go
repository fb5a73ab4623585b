package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"webaudit_backend/internal/model"
)

// Open connects to Postgres and sizes the connection pool.
func Open(dsn string) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN: dsn,
		// Pooled connections through pgbouncer do not support prepared statements.
		PreferSimpleProtocol: true,
	}

	gormConfig := &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Error),
		PrepareStmt: false,
	}

	db, err := gorm.Open(postgres.New(pgConfig), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info().Msg("Database connected successfully")
	return db, nil
}

// Models lists every table owned by this service in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.Plan{},
		&model.User{},
		&model.Project{},
		&model.Payment{},
	}
}

func MigrateDatabase(db *gorm.DB, models ...interface{}) error {
	for _, m := range models {
		if !db.Migrator().HasTable(m) {
			if err := db.Migrator().CreateTable(m); err != nil {
				return fmt.Errorf("create table for %T: %w", m, err)
			}
			log.Info().Msgf("Created table for %T", m)
		} else {
			if err := db.Migrator().AutoMigrate(m); err != nil {
				return fmt.Errorf("migrate table for %T: %w", m, err)
			}
			log.Debug().Msgf("Updated table for %T", m)
		}
	}
	return nil
}
