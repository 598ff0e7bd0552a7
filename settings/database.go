package settings

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Storage is the durable key-value backing for the settings store.
type Storage interface {
	LoadSettings() (map[string]string, error)
	SaveSettings(values map[string]string) error
}

type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

type DB struct {
	*gorm.DB
}

// NewDB opens (or creates) the sqlite database at dsn and migrates the
// settings table.
func NewDB(dsn string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Setting{}); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) LoadSettings() (map[string]string, error) {
	var rows []Setting
	if err := db.DB.Find(&rows).Error; err != nil {
		return nil, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

// SaveSettings upserts every key in a single transaction.
func (db *DB) SaveSettings(values map[string]string) error {
	return db.DB.Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			row := Setting{Key: key, Value: value}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
