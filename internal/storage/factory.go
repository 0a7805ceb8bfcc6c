package storage

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gestaozabele/galeria/internal/config"
)

// New monta o backend configurado e o decora com os caches de existência
// disponíveis (LRU local e, se houver cliente, Redis).
func New(cfg config.StorageConfig, redisClient redis.UniversalClient) (Backend, error) {
	var (
		backend Backend
		err     error
	)

	switch cfg.Provider {
	case "", "filesystem":
		backend, err = NewFileSystem(cfg.MediaRoot, cfg.MediaBaseURL)
	case "memory":
		backend = NewMemory(cfg.MediaBaseURL)
	case "s3", "r2", "cloudflare-r2":
		backend, err = NewS3(S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicDomain: cfg.S3PublicURL,
		})
	default:
		return nil, fmt.Errorf("storage: provedor %s não suportado", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	var caches []ExistsCache
	if cfg.ExistsCacheSize > 0 {
		local, err := NewLRUExistsCache(cfg.ExistsCacheSize)
		if err != nil {
			return nil, err
		}
		caches = append(caches, local)
	}
	if redisClient != nil {
		caches = append(caches, NewRedisExistsCache(redisClient, "", cfg.ExistsCacheTTL))
	}

	return WithExistsCache(backend, Layered(caches...)), nil
}
