package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ruiji/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		media_type TEXT,
		details TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_items_media_type ON items(media_type);

	CREATE TABLE IF NOT EXISTS imports (
		key TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		mtime INTEGER NOT NULL,
		size INTEGER NOT NULL,
		items INTEGER NOT NULL,
		imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// PutItem inserts or replaces an item. The raw catalog payload is stored when
// present so reads return exactly what the catalog sent.
func (s *SQLiteStorage) PutItem(ctx context.Context, item *models.Item) error {
	details, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (id, title, media_type, details, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title, media_type = excluded.media_type,
		   details = excluded.details, updated_at = excluded.updated_at`,
		item.ID, item.Title, item.MediaType, string(details), time.Now(),
	)
	return err
}

// GetItem returns an item by catalog id.
func (s *SQLiteStorage) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	var details string
	err := s.db.QueryRowContext(ctx, `SELECT details FROM items WHERE id = ?`, id).Scan(&details)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return models.ParseItem([]byte(details))
}

// ListItems returns items ordered by id with offset and limit.
func (s *SQLiteStorage) ListItems(ctx context.Context, offset, limit int) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT details FROM items ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		var details string
		if err := rows.Scan(&details); err != nil {
			return nil, err
		}
		item, err := models.ParseItem([]byte(details))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteItem removes an item by id.
func (s *SQLiteStorage) DeleteItem(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	return err
}

// CountItems returns the total number of items.
func (s *SQLiteStorage) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	return count, err
}

// GetImport returns the bookkeeping row for a source key.
func (s *SQLiteStorage) GetImport(ctx context.Context, key string) (*ImportRecord, error) {
	var rec ImportRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT key, path, mtime, size, items, imported_at FROM imports WHERE key = ?`, key,
	).Scan(&rec.Key, &rec.Path, &rec.ModTime, &rec.Size, &rec.Items, &rec.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("import %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutImport inserts or replaces a bookkeeping row.
func (s *SQLiteStorage) PutImport(ctx context.Context, rec *ImportRecord) error {
	if rec.ImportedAt.IsZero() {
		rec.ImportedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO imports (key, path, mtime, size, items, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Key, rec.Path, rec.ModTime, rec.Size, rec.Items, rec.ImportedAt,
	)
	return err
}

// DeleteImport forgets a source file so its next import is not skipped.
func (s *SQLiteStorage) DeleteImport(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM imports WHERE key = ?`, key)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
