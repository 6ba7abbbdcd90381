package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/internal/models"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
)

const (
	defaultFeedTTL   = 30 * time.Second
	subjectNamespace = "subjects"
)

type feedStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Generation(ctx context.Context, namespace string) (int64, error)
	Bump(ctx context.Context, namespace string) error
}

// FeedCache caches public listing pages. Entries are keyed by the namespace
// generation read before the query, so a write that bumps the generation
// hides every page read before it. Cache failures degrade to a database read.
type FeedCache struct {
	store   feedStore
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewFeedCache constructs the cache. A nil *FeedCache is valid and disabled.
func NewFeedCache(store feedStore, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *FeedCache {
	if ttl <= 0 {
		ttl = defaultFeedTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedCache{store: store, metrics: metrics, ttl: ttl, logger: logger}
}

func (c *FeedCache) enabled() bool {
	return c != nil && c.store != nil
}

// lookup fills dest on a hit. The returned key is empty when the page must not
// be stored.
func (c *FeedCache) lookup(ctx context.Context, namespace, params string, dest interface{}) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	gen, err := c.store.Generation(ctx, namespace)
	if err != nil {
		c.metrics.RecordCacheLookup("error")
		c.logger.Warn("feed cache generation unavailable", zap.String("namespace", namespace), zap.Error(err))
		return "", false
	}
	key := fmt.Sprintf("edupacket:feed:%s:%d:%s", namespace, gen, params)
	if err := c.store.Get(ctx, key, dest); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			c.metrics.RecordCacheLookup("miss")
		} else {
			c.metrics.RecordCacheLookup("error")
			c.logger.Warn("feed cache get failed", zap.String("key", key), zap.Error(err))
		}
		return key, false
	}
	c.metrics.RecordCacheLookup("hit")
	return key, true
}

func (c *FeedCache) save(ctx context.Context, key string, value interface{}) {
	if !c.enabled() || key == "" {
		return
	}
	if err := c.store.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("feed cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate bumps the generation of each namespace.
func (c *FeedCache) Invalidate(ctx context.Context, namespaces ...string) {
	if !c.enabled() {
		return
	}
	for _, ns := range namespaces {
		if err := c.store.Bump(ctx, ns); err != nil {
			c.logger.Warn("feed cache invalidate failed", zap.String("namespace", ns), zap.Error(err))
		}
	}
}

// feedNamespace names the listing a record belongs to.
func feedNamespace(kind models.DocumentKind, docType models.DocumentType) string {
	if kind == models.KindSubject {
		return subjectNamespace
	}
	return string(docType)
}

type documentPage struct {
	Items      []models.Document `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

type subjectPage struct {
	Items      []models.Subject  `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
