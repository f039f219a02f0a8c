// Package store persists the exemplar case library and the analysis
// result cache with gorm on SQLite or MySQL.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Store is the gorm-backed document store.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open connects to the database and migrates the schema.
func Open(driver, dsn string, log *slog.Logger, slowThreshold time.Duration) (*Store, error) {
	log = logging.OrDefault(log)

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logging.NewGormLogger(log, slowThreshold)})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w: %w", driver, model.ErrPersistence, err)
	}
	if driver != DriverMySQL {
		// SQLite serializes writers; ":memory:" databases exist per connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("store: %w: %w", model.ErrPersistence, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s, err := New(db, log)
	if err != nil {
		_ = closeDB(db)
		return nil, err
	}
	log.Info("store opened", "driver", driver)
	return s, nil
}

// New wraps an open gorm handle and migrates the schema.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if err := db.AutoMigrate(&CaseRecord{}, &CacheRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w: %w", model.ErrPersistence, err)
	}
	if err := ensureTextIndex(db); err != nil {
		return nil, fmt.Errorf("store: text index: %w: %w", model.ErrPersistence, err)
	}
	return &Store{db: db, log: logging.OrDefault(log)}, nil
}

// textIndex covers the case description columns. MySQL gets a FULLTEXT
// index since TEXT columns cannot take a plain index without a prefix
// length.
const textIndex = "idx_cases_text"

func ensureTextIndex(db *gorm.DB) error {
	if db.Migrator().HasIndex(&CaseRecord{}, textIndex) {
		return nil
	}
	kind := "INDEX"
	if db.Dialector.Name() == DriverMySQL {
		kind = "FULLTEXT INDEX"
	}
	return db.Exec("CREATE " + kind + " " + textIndex + " ON cases (description, category_description)").Error
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return closeDB(s.db)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func persistence(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %w", op, model.ErrPersistence, err)
}
