// Package sqlite provides a SQLite implementation of the sessionkit DraftCache,
// suitable for desktop builds where drafts must survive process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	stdSync "sync"
	"time"

	"github.com/draftpad/sessionkit"
	sessErrors "github.com/draftpad/sessionkit/errors"
	"github.com/draftpad/sessionkit/logging"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Operation constants for consistent error reporting
const (
	opSave = "sqlite.Save"
	opLoad = "sqlite.Load"
)

// ErrCacheClosed is returned by operations on a closed cache.
var ErrCacheClosed = fmt.Errorf("draft cache is closed")

// Config holds configuration options for the SQLite draft cache.
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:drafts.db?_journal_mode=WAL"
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency.
	// Enabled by DefaultConfig; appends "?_journal_mode=WAL" when missing.
	EnableWAL bool

	// TableName is the name of the table to store drafts.
	// Defaults to "drafts" if empty.
	TableName string

	// Connection pool settings. Draft caching is a single-writer workload,
	// so the defaults are modest: MaxOpen=5, MaxIdle=2, Lifetime=1h.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c *Config) setDefaults() {
	if c.TableName == "" {
		c.TableName = "drafts"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 5
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.EnableWAL {
		if !strings.Contains(c.DataSourceName, "?_journal_mode=") {
			c.DataSourceName += "?_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with WAL mode enabled.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// Cache implements sessionkit.DraftCache backed by SQLite.
type Cache struct {
	db        *sql.DB
	mu        stdSync.RWMutex
	closed    bool
	tableName string
	logger    *logging.Logger
}

var _ sessionkit.DraftCache = (*Cache)(nil)

// New creates a new SQLite draft cache from a Config.
func New(config *Config) (*Cache, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	logger := logging.Default().WithComponent("cache/sqlite")
	logger.Info("opening draft cache",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	cache := &Cache{
		db:        db,
		tableName: config.TableName,
		logger:    logger,
	}
	if err := cache.setupSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup drafts schema: %w", err)
	}
	return cache, nil
}

// NewWithDataSource is a convenience constructor using DefaultConfig.
func NewWithDataSource(dataSourceName string) (*Cache, error) {
	return New(DefaultConfig(dataSourceName))
}

func (c *Cache) setupSchema() error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %s (
        document_id  TEXT PRIMARY KEY,
        content      TEXT NOT NULL,
        version      INTEGER NOT NULL,
        updated_at   TIMESTAMP NOT NULL
    );`, c.tableName)
	_, err := c.db.Exec(query)
	return err
}

// Save overwrites the snapshot for its document id.
func (c *Cache) Save(ctx context.Context, snapshot sessionkit.DraftSnapshot) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrCacheClosed
	}
	c.mu.RUnlock()

	query := fmt.Sprintf(`
        INSERT INTO %s (document_id, content, version, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(document_id) DO UPDATE SET
            content = excluded.content,
            version = excluded.version,
            updated_at = excluded.updated_at`, c.tableName)

	_, err := c.db.ExecContext(ctx, query,
		snapshot.DocumentID, snapshot.Content, snapshot.Version, snapshot.UpdatedAt.UTC())
	if err != nil {
		return sessErrors.WrapOpComponent(err, opSave, "cache/sqlite")
	}
	return nil
}

// Load returns the snapshot for the document id, ok=false when absent.
func (c *Cache) Load(ctx context.Context, documentID string) (sessionkit.DraftSnapshot, bool, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return sessionkit.DraftSnapshot{}, false, ErrCacheClosed
	}
	c.mu.RUnlock()

	query := fmt.Sprintf(`SELECT content, version, updated_at FROM %s WHERE document_id = ?`, c.tableName)

	var snap sessionkit.DraftSnapshot
	snap.DocumentID = documentID
	err := c.db.QueryRowContext(ctx, query, documentID).
		Scan(&snap.Content, &snap.Version, &snap.UpdatedAt)
	if err == sql.ErrNoRows {
		return sessionkit.DraftSnapshot{}, false, nil
	}
	if err != nil {
		return sessionkit.DraftSnapshot{}, false, sessErrors.WrapOpComponent(err, opLoad, "cache/sqlite")
	}
	return snap, true, nil
}

// Delete removes the snapshot for a document id, a no-op when absent.
func (c *Cache) Delete(ctx context.Context, documentID string) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrCacheClosed
	}
	c.mu.RUnlock()

	query := fmt.Sprintf(`DELETE FROM %s WHERE document_id = ?`, c.tableName)
	if _, err := c.db.ExecContext(ctx, query, documentID); err != nil {
		return sessErrors.WrapOpComponent(err, opSave, "cache/sqlite")
	}
	return nil
}

// Close closes the underlying database. Subsequent operations fail.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}
