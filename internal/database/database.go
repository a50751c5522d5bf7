package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/tradeshield-api/internal/types"
)

// NewDatabase initializes and returns a new GORM DB connection with the
// order ledger and reply correlation schemas migrated
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// NewTestDatabase opens an isolated in-memory database for tests. The
// pool is pinned to a single connection before the schema is migrated;
// a private in-memory database exists per connection, so any second
// connection would see an empty schema.
func NewTestDatabase() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.SpotOrder{},
		&types.PerpetualOrder{},
		&types.ReplyRecord{},
	)
}
