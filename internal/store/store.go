package store

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the database handle with the assistant's persistence
// operations.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the sqlite database at path and migrates the
// schema.
func Open(path string, log *slog.Logger) (*Store, error) {
	if path == "" {
		path = "data/assistant.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	return NewWithDB(db, log)
}

// NewWithDB wraps an existing gorm handle (tests use an in-memory sqlite).
func NewWithDB(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	if err := db.AutoMigrate(
		&Conversation{},
		&Message{},
		&AuditLog{},
		&Feedback{},
		&Settings{},
		&StockLevel{},
		&Invoice{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Store{db: db, logger: log, now: time.Now}, nil
}

// DB exposes the underlying handle for collaborators that need raw access.
func (s *Store) DB() *gorm.DB {
	return s.db
}
