package media

import (
	"context"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"

	"github.com/gestaozabele/galeria/internal/storage"
)

// RenditionSpec define o tamanho final da miniatura.
type RenditionSpec struct {
	Width  int
	Height int
}

// DefaultRendition devolve a miniatura padrão de 50x50.
func DefaultRendition() RenditionSpec {
	return RenditionSpec{Width: 50, Height: 50}
}

func (r RenditionSpec) valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Deriver gera a miniatura de um original de forma idempotente.
type Deriver struct {
	storage  storage.Backend
	spec     RenditionSpec
	quality  int
	logger   zerolog.Logger
	observer Observer
}

// DeriverOption ajusta um Deriver.
type DeriverOption func(*Deriver)

// WithJPEGQuality define a qualidade do JPEG gerado (1-100).
func WithJPEGQuality(q int) DeriverOption {
	return func(d *Deriver) {
		if q >= 1 && q <= 100 {
			d.quality = q
		}
	}
}

// WithLogger injeta o logger do componente.
func WithLogger(logger zerolog.Logger) DeriverOption {
	return func(d *Deriver) { d.logger = logger }
}

// WithObserver registra métricas de cada derivação.
func WithObserver(o Observer) DeriverOption {
	return func(d *Deriver) {
		if o != nil {
			d.observer = o
		}
	}
}

func NewDeriver(backend storage.Backend, spec RenditionSpec, opts ...DeriverOption) *Deriver {
	if !spec.valid() {
		spec = DefaultRendition()
	}
	d := &Deriver{
		storage:  backend,
		spec:     spec,
		quality:  90,
		logger:   zerolog.Nop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Spec devolve o tamanho configurado.
func (d *Deriver) Spec() RenditionSpec {
	return d.spec
}

// Derive produz a miniatura de originalKey. Nunca devolve erro nem propaga
// panic: falhas viram Status Failed e o original permanece intacto.
func (d *Deriver) Derive(ctx context.Context, originalKey string) (status Status) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			status = failed(DerivedKey(originalKey), fmt.Sprintf("panic: %v", rec), nil)
		}
		d.observer.ObserveDerive(status, time.Since(start))
		d.log(originalKey, status, time.Since(start))
	}()

	if strings.TrimSpace(originalKey) == "" {
		return Status{Kind: NoImage}
	}

	derivedKey := DerivedKey(originalKey)

	exists, err := d.storage.Exists(ctx, derivedKey)
	if err != nil {
		return failed(derivedKey, "verificar miniatura", err)
	}
	if exists {
		return Status{Kind: AlreadyExists, Key: derivedKey}
	}

	var src image.Image
	err = storage.Read(ctx, d.storage, originalKey, func(r io.Reader) error {
		img, err := imaging.Decode(r)
		if err != nil {
			return fmt.Errorf("decodificar: %w", err)
		}
		src = img
		return nil
	})
	if err != nil {
		return failed(derivedKey, "ler original", err)
	}

	thumb, err := Thumbnail(src, d.spec)
	if err != nil {
		return failed(derivedKey, "recortar", err)
	}

	err = storage.Write(ctx, d.storage, derivedKey, func(w io.Writer) error {
		return imaging.Encode(w, thumb, imaging.JPEG, imaging.JPEGQuality(d.quality))
	})
	if err != nil {
		return failed(derivedKey, "gravar miniatura", err)
	}

	return Status{Kind: Success, Key: derivedKey}
}

func (d *Deriver) log(originalKey string, status Status, dur time.Duration) {
	var event *zerolog.Event
	switch status.Kind {
	case Failed:
		event = d.logger.Warn().Err(status.Err).Str("reason", status.Reason)
	case Success:
		event = d.logger.Info()
	default:
		event = d.logger.Debug()
	}
	event.Str("original", originalKey).Str("derived", status.Key).
		Str("status", status.Kind.String()).Dur("duration", dur).Msg("media: derivação")
}

// CenterSquare devolve o quadrado central de lado min(largura, altura).
// Largura maior desloca em x por (w-h)/2; caso contrário desloca em y por (h-w)/2.
func CenterSquare(bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	if w > h {
		off := (w - h) / 2
		return image.Rect(bounds.Min.X+off, bounds.Min.Y, bounds.Min.X+off+h, bounds.Min.Y+h)
	}
	off := (h - w) / 2
	return image.Rect(bounds.Min.X, bounds.Min.Y+off, bounds.Min.X+w, bounds.Min.Y+off+w)
}

// Thumbnail recorta o quadrado central e redimensiona com Lanczos para spec.
func Thumbnail(src image.Image, spec RenditionSpec) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("imagem ausente")
	}
	if !spec.valid() {
		return nil, fmt.Errorf("tamanho inválido %dx%d", spec.Width, spec.Height)
	}
	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("imagem vazia")
	}
	square := imaging.Crop(src, CenterSquare(bounds))
	return imaging.Resize(square, spec.Width, spec.Height, imaging.Lanczos), nil
}
