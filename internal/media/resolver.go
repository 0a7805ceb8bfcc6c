package media

import (
	"context"
	"strings"

	"github.com/gestaozabele/galeria/internal/storage"
)

// Resolver escolhe a URL servida para um original. Nunca dispara derivação.
type Resolver struct {
	storage storage.Backend
}

func NewResolver(backend storage.Backend) *Resolver {
	return &Resolver{storage: backend}
}

// URL devolve a miniatura se existir, o original caso contrário e vazio sem imagem.
// Erro ao consultar o backend cai no original.
func (r *Resolver) URL(ctx context.Context, originalKey string) string {
	if strings.TrimSpace(originalKey) == "" {
		return ""
	}
	if derived := r.ThumbnailURL(ctx, originalKey); derived != "" {
		return derived
	}
	return r.storage.URL(originalKey)
}

// ThumbnailURL devolve a URL da miniatura ou vazio quando ela ainda não existe.
func (r *Resolver) ThumbnailURL(ctx context.Context, originalKey string) string {
	derivedKey := DerivedKey(originalKey)
	if derivedKey == "" {
		return ""
	}
	ok, err := r.storage.Exists(ctx, derivedKey)
	if err != nil || !ok {
		return ""
	}
	return r.storage.URL(derivedKey)
}

// OriginalURL devolve a URL do original ou vazio sem imagem.
func (r *Resolver) OriginalURL(originalKey string) string {
	if strings.TrimSpace(originalKey) == "" {
		return ""
	}
	return r.storage.URL(originalKey)
}
