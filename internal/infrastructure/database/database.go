package database

import (
	"strings"

	"carbonmarket-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

// Open opens a GORM DB from DSN. Postgres URLs use PreferSimpleProtocol so
// pooled connections (PgBouncer and friends) do not trip over cached prepared
// statements; "sqlite://<path>" DSNs open a single-node SQLite file.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), cfg)
	}
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), cfg)
}

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&domain.Project{},
		&domain.Document{},
		&domain.Verification{},
		&domain.CarbonCredit{},
		&domain.Listing{},
		&domain.Trade{},
		&domain.LendingPosition{},
		&domain.Activity{},
	}
}

// AutoMigrate creates or updates the schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
