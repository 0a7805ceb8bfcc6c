package asset

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/gestaozabele/galeria/internal/media"
	"github.com/gestaozabele/galeria/internal/storage"
	"github.com/gestaozabele/galeria/internal/util"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	maxReserveAttempts = 5
)

// ErrInvalidImage sinaliza um upload que não é imagem suportada.
var ErrInvalidImage = errors.New("imagem inválida")

// Store é o subconjunto do repositório usado pelo serviço.
type Store interface {
	Insert(ctx context.Context, a *Asset) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*Asset, error)
	List(ctx context.Context, limit, offset int) ([]Asset, error)
}

// Service orquestra upload, registro e derivação de miniaturas.
type Service struct {
	store    Store
	storage  storage.Backend
	paths    *media.PathGenerator
	deriver  *media.Deriver
	resolver *media.Resolver
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService cria uma nova instância do serviço.
func NewService(store Store, backend storage.Backend, paths *media.PathGenerator, deriver *media.Deriver, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		storage:  backend,
		paths:    paths,
		deriver:  deriver,
		resolver: media.NewResolver(backend),
		logger:   logger,
		now:      time.Now,
	}
}

// Upload reserva a chave no registro, grava o original e deriva a miniatura.
// Falha na derivação não desfaz o upload: o resultado carrega o Status.
// Sem bytes nada é registrado e o Status é NoImage.
func (s *Service) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if len(input.Data) == 0 {
		return &UploadResult{Status: s.deriver.Derive(ctx, "")}, nil
	}

	input.Filename = strings.TrimSpace(input.Filename)
	if err := util.ValidateImageExtension(media.Extension(input.Filename)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if input.ContentType == "" {
		input.ContentType = storage.ContentType(input.Filename)
	}
	if err := util.ValidateImageContentType(input.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	createdAt := s.now().UTC()
	sum := blake3.Sum256(input.Data)
	a := &Asset{
		ID:          util.NewID(),
		Filename:    input.Filename,
		ContentType: input.ContentType,
		Size:        int64(len(input.Data)),
		Checksum:    hex.EncodeToString(sum[:]),
		CreatedAt:   createdAt,
	}
	if err := s.reserve(ctx, a); err != nil {
		return nil, err
	}
	key := a.OriginalKey

	if err := storage.Put(ctx, s.storage, key, input.Data); err != nil {
		if derr := s.store.Delete(ctx, a.ID); derr != nil {
			s.logger.Error().Err(derr).Str("key", key).Msg("falha ao liberar reserva da chave")
		}
		return nil, fmt.Errorf("gravar original: %w", err)
	}

	status := s.deriver.Derive(ctx, key)
	view := s.view(ctx, *a)
	return &UploadResult{View: &view, Status: status}, nil
}

// reserve registra a imagem antes de gravar os bytes. Se outro upload já
// reivindicou a chave (ou o radical da miniatura), tenta a próxima livre.
func (s *Service) reserve(ctx context.Context, a *Asset) error {
	var reserved []string
	for attempt := 1; ; attempt++ {
		key, err := s.paths.Generate(ctx, a.CreatedAt, a.Filename, reserved...)
		if err != nil {
			return err
		}
		a.OriginalKey = key
		a.ThumbnailKey = media.DerivedKey(key)

		err = s.store.Insert(ctx, a)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateKey) || attempt >= maxReserveAttempts {
			return fmt.Errorf("registrar imagem %s: %w", key, err)
		}
		s.logger.Debug().Str("key", key).Msg("chave reservada por outro upload; tentando a próxima")
		reserved = append(reserved, key)
	}
}

// Get devolve a imagem com as URLs resolvidas.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.view(ctx, *a)
	return &view, nil
}

// List lista imagens paginadas com as URLs resolvidas.
func (s *Service) List(ctx context.Context, limit, offset int) ([]View, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	assets, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(assets))
	for _, a := range assets {
		views = append(views, s.view(ctx, a))
	}
	return views, nil
}

// Rederive dispara de novo a derivação de uma imagem registrada.
func (s *Service) Rederive(ctx context.Context, id uuid.UUID) (media.Status, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return media.Status{}, err
	}
	return s.deriver.Derive(ctx, a.OriginalKey), nil
}

func (s *Service) view(ctx context.Context, a Asset) View {
	if a.ThumbnailKey == "" {
		a.ThumbnailKey = media.DerivedKey(a.OriginalKey)
	}
	view := View{
		Asset:        a,
		ThumbnailURL: s.resolver.ThumbnailURL(ctx, a.OriginalKey),
		OriginalURL:  s.resolver.OriginalURL(a.OriginalKey),
	}
	view.URL = view.ThumbnailURL
	if view.URL == "" {
		view.URL = view.OriginalURL
	}
	return view
}
