package localstore

import (
	"errors"
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// record is one persisted key-value pair; values are JSON documents.
type record struct {
	Key   string `gorm:"column:key;primaryKey;size:190;not null"`
	Value string `gorm:"column:value;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (record) TableName() string {
	return "local_records"
}

// SQLite is the durable Store backed by a single SQLite database file.
type SQLite struct {
	kvStore
	db *gorm.DB
}

// OpenSQLite establishes a SQLite connection, performs schema migration, and
// returns the durable local store.
func OpenSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("localstore: database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("local store initialized", zap.String("path", path))
	}

	store := &SQLite{db: db}
	store.kvStore = kvStore{kv: &sqliteBackend{db: db}}
	return store, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type sqliteBackend struct {
	db *gorm.DB
}

func (b *sqliteBackend) load(key string) (string, bool, error) {
	var row record
	err := b.db.Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (b *sqliteBackend) save(key string, value string) error {
	row := record{Key: key, Value: value}
	return b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
}
