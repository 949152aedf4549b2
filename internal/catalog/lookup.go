package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/internal/titleindex"
	"github.com/hyperjump/ruiji/pkg/utils"
	"go.uber.org/zap"
)

// searchLimit is how many candidates a name search considers.
const searchLimit = 10

// Remote is the subset of Client used by Lookup.
type Remote interface {
	Search(ctx context.Context, name string, limit int) ([]models.SearchHit, error)
	Details(ctx context.Context, id int64) (*models.Item, error)
}

// TitleIndex is the local title index used when the remote catalog is unavailable.
type TitleIndex interface {
	Index(ctx context.Context, item *models.Item) error
	Search(ctx context.Context, name string, limit int, fuzzy bool) ([]titleindex.Hit, error)
}

// Lookup resolves names to ids and fetches item details. Details are served
// from the LRU cache, then the local database, then the remote API; remote
// results are written through to the database and title index.
type Lookup struct {
	remote Remote
	store  storage.Storage
	titles TitleIndex
	cache  *DetailCache
	logger *zap.Logger
}

// LookupOption configures a Lookup.
type LookupOption func(*Lookup)

// WithRemote enables remote search and details. Without it Lookup is offline.
func WithRemote(r Remote) LookupOption {
	return func(l *Lookup) { l.remote = r }
}

// WithCache sets the detail cache.
func WithCache(c *DetailCache) LookupOption {
	return func(l *Lookup) { l.cache = c }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) LookupOption {
	return func(l *Lookup) { l.logger = log }
}

// NewLookup creates a lookup over the local store and title index. Either may be nil.
func NewLookup(store storage.Storage, titles TitleIndex, opts ...LookupOption) *Lookup {
	l := &Lookup{store: store, titles: titles}
	for _, opt := range opts {
		opt(l)
	}
	if l.cache == nil {
		l.cache = NewDetailCache(0)
	}
	l.logger = utils.LoggerOrNop(l.logger)
	return l
}

// Forget drops any cached details of id so the next Details call reads the
// local catalog again.
func (l *Lookup) Forget(id int64) {
	l.cache.Delete(id)
}

// Online reports whether a remote catalog is configured.
func (l *Lookup) Online() bool {
	return l.remote != nil
}

// Resolve returns the id of the best match for name. Among the search hits the
// first whose media type equals mediaType (ignoring case) wins, otherwise the
// first hit. When the remote catalog is unreachable the local title index is
// searched instead, exact first and then fuzzy.
func (l *Lookup) Resolve(ctx context.Context, name, mediaType string) (embedding.ID, error) {
	if l.remote != nil {
		hits, err := l.remote.Search(ctx, name, searchLimit)
		switch {
		case err == nil:
			if len(hits) == 0 {
				return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
			}
			return embedding.ID(pickHit(hits, mediaType, func(h models.SearchHit) string { return h.MediaType }).ID), nil
		case errors.Is(err, ErrUnavailable):
			l.logger.Warn("catalog search unavailable, using local title index",
				zap.String("name", name), zap.Error(err))
		default:
			return 0, fmt.Errorf("catalog search: %w", err)
		}
	}
	return l.resolveLocal(ctx, name, mediaType)
}

func (l *Lookup) resolveLocal(ctx context.Context, name, mediaType string) (embedding.ID, error) {
	if l.titles == nil {
		return 0, fmt.Errorf("%w: %q (no local title index)", ErrNotFound, name)
	}
	for _, fuzzy := range []bool{false, true} {
		hits, err := l.titles.Search(ctx, name, searchLimit, fuzzy)
		if err != nil {
			return 0, fmt.Errorf("local title search: %w", err)
		}
		if len(hits) > 0 {
			best := pickHit(hits, mediaType, func(h titleindex.Hit) string { return h.MediaType })
			l.logger.Debug("resolved name locally",
				zap.String("name", name), zap.Int64("id", best.ID), zap.Bool("fuzzy", fuzzy))
			return embedding.ID(best.ID), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// pickHit returns the first hit with the wanted media type, else the first hit.
// hits must not be empty.
func pickHit[H any](hits []H, mediaType string, mediaTypeOf func(H) string) H {
	for _, h := range hits {
		if models.HasMediaType(mediaTypeOf(h), mediaType) {
			return h
		}
	}
	return hits[0]
}

// Details returns the metadata of item id.
func (l *Lookup) Details(ctx context.Context, id embedding.ID) (*models.Item, error) {
	key := int64(id)
	if item, ok := l.cache.Get(key); ok {
		return item, nil
	}
	if l.store != nil {
		item, err := l.store.GetItem(ctx, key)
		if err == nil {
			l.cache.Set(item)
			return item, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			l.logger.Warn("local catalog read failed", zap.Int64("id", key), zap.Error(err))
		}
	}
	if l.remote == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, key)
	}
	item, err := l.remote.Details(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("catalog details %d: %w", key, err)
	}
	l.remember(ctx, item)
	return item, nil
}

// remember stores item in the cache, database, and title index.
func (l *Lookup) remember(ctx context.Context, item *models.Item) {
	l.cache.Set(item)
	if l.store != nil {
		if err := l.store.PutItem(ctx, item); err != nil {
			l.logger.Warn("failed to persist item", zap.Int64("id", item.ID), zap.Error(err))
		}
	}
	if l.titles != nil {
		if err := l.titles.Index(ctx, item); err != nil {
			l.logger.Warn("failed to index item titles", zap.Int64("id", item.ID), zap.Error(err))
		}
	}
}
