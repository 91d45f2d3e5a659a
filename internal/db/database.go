// Package db persists the AI request log with gorm on PostgreSQL or SQLite
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"open-lovable/internal/logging"
	"open-lovable/pkg/models"
)

// Database wraps the GORM database instance
type Database struct {
	DB      *gorm.DB
	Dialect string
}

// Config holds database configuration
type Config struct {
	// URL is a PostgreSQL URL or key/value DSN; empty selects SQLite
	URL string
	// SQLitePath is the SQLite file, ":memory:" for tests
	SQLitePath string
	// LogLevel defaults to warnings only
	LogLevel logger.LogLevel
}

// IsPostgresURL reports whether dsn addresses PostgreSQL
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// Open connects and migrates the database
func Open(config Config) (*Database, error) {
	level := config.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		dialector gorm.Dialector
		dialect   string
	)
	if IsPostgresURL(config.URL) {
		dialector = postgres.Open(config.URL)
		dialect = "postgres"
	} else {
		path := config.SQLitePath
		if path == "" {
			path = "open-lovable.db"
		}
		dialector = sqlite.Open(path)
		dialect = "sqlite"
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if dialect == "postgres" {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// one writer; also keeps a :memory: database alive across calls
		sqlDB.SetMaxOpenConns(1)
	}

	database := &Database{DB: db, Dialect: dialect}

	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.L().Info("database connected", zap.String("dialect", dialect))
	return database, nil
}

// Migrate runs database migrations
func (d *Database) Migrate() error {
	if err := d.DB.AutoMigrate(&models.AIRequestLog{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
