// Package storage persists catalog item metadata and import bookkeeping.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/ruiji/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ImportRecord remembers the state of a source file at its last import.
type ImportRecord struct {
	Key        string
	Path       string
	ModTime    int64 // UnixNano
	Size       int64
	Items      int
	ImportedAt time.Time
}

// Storage defines catalog item and import bookkeeping operations.
type Storage interface {
	// Item operations
	PutItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	ListItems(ctx context.Context, offset, limit int) ([]*models.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	CountItems(ctx context.Context) (int64, error)

	// Import bookkeeping
	GetImport(ctx context.Context, key string) (*ImportRecord, error)
	PutImport(ctx context.Context, rec *ImportRecord) error
	DeleteImport(ctx context.Context, key string) error

	Close() error
}
