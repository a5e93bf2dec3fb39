package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenGorm wraps the existing connection pool in a gorm session so both
// access layers share one pool.
func OpenGorm(db *sqlx.DB, env string) (*gorm.DB, error) {
	logLevel := logger.Error
	if env == "development" {
		logLevel = logger.Info
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db.DB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm session: %w", err)
	}
	return gdb, nil
}
