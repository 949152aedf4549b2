// Package importer loads catalog item files into the local catalog database and
// title index.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/ruiji/internal/fileid"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/internal/watcher"
	"github.com/hyperjump/ruiji/pkg/utils"
	"go.uber.org/zap"
)

// TitleIndexer receives the titles of imported items.
type TitleIndexer interface {
	Index(ctx context.Context, item *models.Item) error
}

// Result describes the import of one file.
type Result struct {
	Path    string `json:"path"`
	Items   int    `json:"items"`
	Skipped bool   `json:"skipped"`
}

// Summary describes the import of a directory tree.
type Summary struct {
	Files   int `json:"files"`
	Skipped int `json:"skipped"`
	Items   int `json:"items"`
	Failed  int `json:"failed"`
}

// Importer imports catalog files into storage and the title index.
type Importer struct {
	store      storage.Storage
	titles     TitleIndexer
	invalidate func(id int64)
	logger     *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets a logger for import events.
func WithLogger(l *zap.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// WithInvalidator sets a hook called with the id of every item written, so
// caches in front of the store can drop stale copies.
func WithInvalidator(fn func(id int64)) Option {
	return func(im *Importer) { im.invalidate = fn }
}

// New creates an importer. titles may be nil.
func New(store storage.Storage, titles TitleIndexer, opts ...Option) *Importer {
	im := &Importer{store: store, titles: titles}
	for _, opt := range opts {
		opt(im)
	}
	im.logger = utils.LoggerOrNop(im.logger)
	return im
}

// ImportFile imports the items in the file at path. A file already imported
// with the same mtime and size is skipped.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	key := fileid.SourceKey(absPath)
	if rec, err := im.store.GetImport(ctx, key); err == nil &&
		rec.ModTime == info.ModTime().UnixNano() && rec.Size == info.Size() {
		im.logger.Debug("importer skipping unchanged file", zap.String("path", absPath))
		return &Result{Path: absPath, Items: rec.Items, Skipped: true}, nil
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("read import record: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	items, err := ParseItems(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	for _, item := range items {
		if err := im.store.PutItem(ctx, item); err != nil {
			return nil, fmt.Errorf("store item %d: %w", item.ID, err)
		}
		if im.invalidate != nil {
			im.invalidate(item.ID)
		}
		if im.titles != nil {
			if err := im.titles.Index(ctx, item); err != nil {
				return nil, fmt.Errorf("index item %d: %w", item.ID, err)
			}
		}
	}
	rec := &storage.ImportRecord{
		Key:     key,
		Path:    absPath,
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
		Items:   len(items),
	}
	if err := im.store.PutImport(ctx, rec); err != nil {
		return nil, fmt.Errorf("record import: %w", err)
	}
	im.logger.Info("imported catalog file", zap.String("path", absPath), zap.Int("items", len(items)))
	return &Result{Path: absPath, Items: len(items)}, nil
}

// ImportDirectory imports every regular file under dir whose extension is in
// extensions (all files when empty). Files that fail to parse are logged and
// counted; the walk continues.
func (im *Importer) ImportDirectory(ctx context.Context, dir string, extensions []string, recursive bool) (*Summary, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	sum := &Summary{}
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !watcher.MatchExtension(path, extensions) {
			return nil
		}
		res, err := im.ImportFile(ctx, path)
		if err != nil {
			im.logger.Warn("import failed", zap.String("path", path), zap.Error(err))
			sum.Failed++
			return nil
		}
		sum.Files++
		sum.Items += res.Items
		if res.Skipped {
			sum.Skipped++
		}
		return nil
	})
	return sum, err
}

// ImportPath imports a single file or a directory tree.
func (im *Importer) ImportPath(ctx context.Context, path string, extensions []string, recursive bool) (*Summary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return im.ImportDirectory(ctx, path, extensions, recursive)
	}
	res, err := im.ImportFile(ctx, path)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Files: 1, Items: res.Items}
	if res.Skipped {
		sum.Skipped = 1
	}
	return sum, nil
}

// FileChanged imports a file reported by the watcher.
func (im *Importer) FileChanged(ctx context.Context, path string) {
	if _, err := im.ImportFile(ctx, path); err != nil {
		im.logger.Warn("watched file import failed", zap.String("path", path), zap.Error(err))
	}
}

// FileRemoved forgets a removed file so it is imported again if it returns.
// Items it contributed stay in the catalog.
func (im *Importer) FileRemoved(ctx context.Context, path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}
	if err := im.store.DeleteImport(ctx, fileid.SourceKey(absPath)); err != nil {
		im.logger.Warn("failed to forget removed file", zap.String("path", absPath), zap.Error(err))
		return
	}
	im.logger.Debug("importer forgot removed file", zap.String("path", absPath))
}
