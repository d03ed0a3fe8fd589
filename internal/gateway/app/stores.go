package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	artifactcache "repolens/internal/cache/artifact"
	"repolens/internal/gateway/config"
	artifactrepo "repolens/internal/gateway/repository/artifact"
)

type gatewayStores struct {
	artifact artifactrepo.Store
	closers  []io.Closer
}

func (s *gatewayStores) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// initStores picks the artifact origin (S3, then Postgres, then SQLite, then
// memory) and puts the read-through cache in front of it.
func initStores(ctx context.Context, cfg *config.Config) (*gatewayStores, error) {
	stores := &gatewayStores{}
	origin, label, err := chooseArtifactOrigin(ctx, cfg, stores)
	if err != nil {
		return nil, err
	}
	if origin == nil {
		return nil, fmt.Errorf("artifact origin store is nil")
	}
	log.Printf("artifact store: using %s", label)
	stores.artifact = artifactcache.NewCachedStore(origin, artifactcache.DefaultCacheConfig())
	return stores, nil
}

func chooseArtifactOrigin(ctx context.Context, cfg *config.Config, stores *gatewayStores) (artifactrepo.Store, string, error) {
	if cfg.Artifact.CanUseS3() {
		s3Cfg := artifactrepo.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
			URLExpiry: cfg.Artifact.URLExpiry,
		}
		s3Store, err := artifactrepo.NewS3Store(s3Cfg)
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		return s3Store, fmt.Sprintf("s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint), nil
	}
	if cfg.Artifact.Enabled {
		log.Printf("artifact store: s3 config incomplete, falling back")
	}

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pg, err := artifactrepo.NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize artifact postgres store: %w", err)
		}
		stores.closers = append(stores.closers, pg)
		return pg, "postgres", nil
	}

	if path := strings.TrimSpace(cfg.SQLitePath); path != "" {
		lite, err := artifactrepo.NewSQLiteStore(ctx, path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize artifact sqlite store: %w", err)
		}
		stores.closers = append(stores.closers, lite)
		return lite, "sqlite path=" + path, nil
	}

	return artifactrepo.NewMemoryStore(), "in-memory", nil
}
