package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite" // pure Go SQLite (modernc.org/sqlite) GORM dialector
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBClient defines the interface for our database operations.
// This allows callers to be tested against other implementations.
type DBClient interface {
	// Gorm returns the GORM handle used by the stores.
	Gorm() *gorm.DB
	// GetDB returns the raw *sql.DB instance.
	GetDB() *sql.DB
	// Close closes the database connection.
	Close() error
	// Ping checks the database connection.
	Ping(ctx context.Context) error
}

// SQLiteClient implements DBClient for SQLite databases.
type SQLiteClient struct {
	gdb      *gorm.DB
	sqlDB    *sql.DB
	filePath string
}

// NewSQLiteClient creates and returns a new SQLite database client.
// dbName is used to construct the file path (e.g., "cty.db").
func NewSQLiteClient(dataDir, dbName string) (*SQLiteClient, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory must be specified for SQLite database")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	dbPath := filepath.Join(dataDir, dbName)
	// WAL lets readers continue while a refreshed snapshot is written.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)", dbPath)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database %s: %w", dbPath, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB for %s: %w", dbPath, err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return &SQLiteClient{
		gdb:      gdb,
		sqlDB:    sqlDB,
		filePath: dbPath,
	}, nil
}

// Gorm returns the GORM handle.
func (s *SQLiteClient) Gorm() *gorm.DB {
	return s.gdb
}

// GetDB returns the raw *sql.DB instance.
func (s *SQLiteClient) GetDB() *sql.DB {
	return s.sqlDB
}

// Path returns the database file path.
func (s *SQLiteClient) Path() string {
	return s.filePath
}

// Close closes the database connection.
func (s *SQLiteClient) Close() error {
	return s.sqlDB.Close()
}

// Ping checks the database connection.
func (s *SQLiteClient) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}
