package github

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"repolens/internal/filegraph"
	"repolens/internal/observability"
)

var logf = log.Printf

type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries: 256,
		TTL:        10 * time.Minute,
	}
}

// CachedLister memoises successful listings per repository.
// Failures are never cached.
type CachedLister struct {
	origin Lister
	cache  *expirable.LRU[RepoRef, []filegraph.FileEntry]
}

func NewCachedLister(origin Lister, cfg CacheConfig) *CachedLister {
	def := DefaultCacheConfig()
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	return &CachedLister{
		origin: origin,
		cache:  expirable.NewLRU[RepoRef, []filegraph.FileEntry](cfg.MaxEntries, nil, cfg.TTL),
	}
}

func (l *CachedLister) ListFiles(ctx context.Context, ref RepoRef) ([]filegraph.FileEntry, error) {
	if files, ok := l.cache.Get(ref); ok {
		observability.ListingRequestsTotal.WithLabelValues("cache_hit").Inc()
		return append([]filegraph.FileEntry(nil), files...), nil
	}
	files, err := l.origin.ListFiles(ctx, ref)
	if err != nil {
		observability.ListingRequestsTotal.WithLabelValues(listingOutcome(err)).Inc()
		return nil, err
	}
	observability.ListingRequestsTotal.WithLabelValues("ok").Inc()
	l.cache.Add(ref, append([]filegraph.FileEntry(nil), files...))
	return files, nil
}

func listingOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoFiles):
		return "no_files"
	default:
		return "error"
	}
}
