package artifact

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	artifactrepo "repolens/internal/gateway/repository/artifact"
	"repolens/internal/observability"
)

type (
	Store = artifactrepo.Store
	Blob  = artifactrepo.Blob
)

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int
	// BlobMaxBytes skips caching of larger blobs; 0 caches everything.
	BlobMaxBytes int

	ListTTL        time.Duration
	ListMaxEntries int

	URLTTL        time.Duration
	URLMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:        5 * time.Minute,
		BlobMaxEntries: 256,
		BlobMaxBytes:   8 * 1024 * 1024, // 8MiB, one infographic
		ListTTL:        30 * time.Second,
		ListMaxEntries: 512,
		URLTTL:         5 * time.Minute,
		URLMaxEntries:  1024,
	}
}

func (cfg CacheConfig) withDefaults() CacheConfig {
	def := DefaultCacheConfig()
	if cfg.BlobTTL <= 0 {
		cfg.BlobTTL = def.BlobTTL
	}
	if cfg.BlobMaxEntries <= 0 {
		cfg.BlobMaxEntries = def.BlobMaxEntries
	}
	if cfg.BlobMaxBytes < 0 {
		cfg.BlobMaxBytes = def.BlobMaxBytes
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListMaxEntries <= 0 {
		cfg.ListMaxEntries = def.ListMaxEntries
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = def.URLTTL
	}
	if cfg.URLMaxEntries <= 0 {
		cfg.URLMaxEntries = def.URLMaxEntries
	}
	return cfg
}

type MetricsSnapshot struct {
	BlobHits       uint64
	BlobMisses     uint64
	ListHits       uint64
	ListMisses     uint64
	URLHits        uint64
	URLMisses      uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type Metrics struct {
	blobHits       atomic.Uint64
	blobMisses     atomic.Uint64
	listHits       atomic.Uint64
	listMisses     atomic.Uint64
	urlHits        atomic.Uint64
	urlMisses      atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		BlobHits:       m.blobHits.Load(),
		BlobMisses:     m.blobMisses.Load(),
		ListHits:       m.listHits.Load(),
		ListMisses:     m.listMisses.Load(),
		URLHits:        m.urlHits.Load(),
		URLMisses:      m.urlMisses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

func (m *Metrics) hit(cache string, c *atomic.Uint64) {
	c.Add(1)
	observability.ArtifactCacheTotal.WithLabelValues(cache, "hit").Inc()
}

func (m *Metrics) miss(cache string, c *atomic.Uint64) {
	c.Add(1)
	m.originReads.Add(1)
	observability.ArtifactCacheTotal.WithLabelValues(cache, "miss").Inc()
}

// CachedStore is a read-through, write-through cache in front of an origin
// Store. Cached byte slices are never handed out directly.
type CachedStore struct {
	origin       Store
	blobMaxBytes int

	blobCache *expirable.LRU[string, Blob]
	listCache *expirable.LRU[string, []string]
	urlCache  *expirable.LRU[string, string]
	metrics   Metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	cfg = cfg.withDefaults()
	return &CachedStore{
		origin:       origin,
		blobMaxBytes: cfg.BlobMaxBytes,
		blobCache:    expirable.NewLRU[string, Blob](cfg.BlobMaxEntries, nil, cfg.BlobTTL),
		listCache:    expirable.NewLRU[string, []string](cfg.ListMaxEntries, nil, cfg.ListTTL),
		urlCache:     expirable.NewLRU[string, string](cfg.URLMaxEntries, nil, cfg.URLTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, runID, name string, blob Blob) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.Put(ctx, runID, name, blob); err != nil {
		s.metrics.originWriteErr.Add(1)
		return err
	}

	key := artifactKey(runID, name)
	s.remember(key, blob)
	s.listCache.Remove(strings.TrimSpace(runID))
	s.urlCache.Remove(key)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, runID, name string) (Blob, error) {
	key := artifactKey(runID, name)
	if blob, ok := s.blobCache.Get(key); ok {
		s.metrics.hit("blob", &s.metrics.blobHits)
		return copyBlob(blob), nil
	}
	s.metrics.miss("blob", &s.metrics.blobMisses)

	blob, err := s.origin.Get(ctx, runID, name)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return Blob{}, err
	}
	s.remember(key, blob)
	return copyBlob(blob), nil
}

func (s *CachedStore) GetURL(ctx context.Context, runID, name string) (string, error) {
	key := artifactKey(runID, name)
	if cached, ok := s.urlCache.Get(key); ok {
		s.metrics.hit("url", &s.metrics.urlHits)
		return cached, nil
	}
	s.metrics.miss("url", &s.metrics.urlMisses)

	url, err := s.origin.GetURL(ctx, runID, name)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return "", err
	}
	if strings.TrimSpace(url) != "" {
		s.urlCache.Add(key, url)
	}
	return url, nil
}

func (s *CachedStore) List(ctx context.Context, runID string) ([]string, error) {
	runID = strings.TrimSpace(runID)
	if list, ok := s.listCache.Get(runID); ok {
		s.metrics.hit("list", &s.metrics.listHits)
		return append([]string(nil), list...), nil
	}
	s.metrics.miss("list", &s.metrics.listMisses)

	list, err := s.origin.List(ctx, runID)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, err
	}
	s.listCache.Add(runID, append([]string(nil), list...))
	return append([]string(nil), list...), nil
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.snapshot()
}

func (s *CachedStore) remember(key string, blob Blob) {
	if s.blobMaxBytes > 0 && len(blob.Data) > s.blobMaxBytes {
		s.blobCache.Remove(key)
		return
	}
	s.blobCache.Add(key, copyBlob(blob))
}

func copyBlob(b Blob) Blob {
	return Blob{Data: append([]byte(nil), b.Data...), ContentType: b.ContentType}
}

func artifactKey(runID, name string) string {
	return strings.TrimSpace(runID) + "/" + strings.TrimLeft(strings.TrimSpace(name), "/")
}
