package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// ExistsCache guarda apenas respostas positivas de Exists. O pipeline nunca
// apaga artefatos, então uma chave vista uma vez continua existindo.
type ExistsCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string) error
}

// WithExistsCache decora backend consultando cache antes de Exists.
// Falhas do cache degradam para o backend.
func WithExistsCache(backend Backend, cache ExistsCache) Backend {
	if cache == nil {
		return backend
	}
	return &cachedBackend{Backend: backend, cache: cache}
}

type cachedBackend struct {
	Backend
	cache ExistsCache
}

func (c *cachedBackend) Exists(ctx context.Context, key string) (bool, error) {
	if seen, err := c.cache.Seen(ctx, key); err == nil && seen {
		return true, nil
	}
	ok, err := c.Backend.Exists(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	_ = c.cache.Remember(ctx, key)
	return true, nil
}

func (c *cachedBackend) Create(ctx context.Context, key string) (Writer, error) {
	w, err := c.Backend.Create(ctx, key)
	if err != nil {
		return nil, err
	}
	return &rememberingWriter{Writer: w, ctx: ctx, key: key, cache: c.cache}, nil
}

type rememberingWriter struct {
	Writer
	ctx   context.Context
	key   string
	cache ExistsCache
}

func (w *rememberingWriter) Close() error {
	if err := w.Writer.Close(); err != nil {
		return err
	}
	_ = w.cache.Remember(w.ctx, w.key)
	return nil
}

// LRUExistsCache mantém as chaves mais recentes em memória do processo.
type LRUExistsCache struct {
	cache *lru.Cache[string, struct{}]
}

// NewLRUExistsCache cria cache com até size chaves.
func NewLRUExistsCache(size int) (*LRUExistsCache, error) {
	if size <= 0 {
		return nil, errors.New("storage: tamanho do cache deve ser positivo")
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &LRUExistsCache{cache: cache}, nil
}

func (l *LRUExistsCache) Seen(_ context.Context, key string) (bool, error) {
	return l.cache.Contains(key), nil
}

func (l *LRUExistsCache) Remember(_ context.Context, key string) error {
	l.cache.Add(key, struct{}{})
	return nil
}

// RedisExistsCache compartilha as chaves conhecidas entre instâncias.
type RedisExistsCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisExistsCache usa prefix "galeria:exists:" quando vazio.
func NewRedisExistsCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisExistsCache {
	if prefix == "" {
		prefix = "galeria:exists:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisExistsCache{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisExistsCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("storage: redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisExistsCache) Remember(ctx context.Context, key string) error {
	return r.client.Set(ctx, r.prefix+key, 1, r.ttl).Err()
}

type layeredCache []ExistsCache

// Layered consulta os caches em ordem e grava em todos.
func Layered(caches ...ExistsCache) ExistsCache {
	out := make(layeredCache, 0, len(caches))
	for _, c := range caches {
		if c != nil {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (l layeredCache) Seen(ctx context.Context, key string) (bool, error) {
	for i, c := range l {
		if ok, err := c.Seen(ctx, key); err == nil && ok {
			for _, upper := range l[:i] {
				_ = upper.Remember(ctx, key)
			}
			return true, nil
		}
	}
	return false, nil
}

func (l layeredCache) Remember(ctx context.Context, key string) error {
	var errs []error
	for _, c := range l {
		if err := c.Remember(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
