package asset

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/galeria/internal/media"
)

var (
	ErrNotFound     = errors.New("asset not found")
	ErrDuplicateKey = errors.New("asset key already reserved")
)

// Asset é o registro de uma imagem enviada. ThumbnailKey é sempre
// media.DerivedKey(OriginalKey); é gravada para que o banco recuse dois
// originais que dividiriam a mesma miniatura.
type Asset struct {
	ID           uuid.UUID `json:"id"`
	OriginalKey  string    `json:"original_key"`
	ThumbnailKey string    `json:"thumbnail_key"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Checksum     string    `json:"checksum"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasImage indica se o registro aponta para um original.
func (a Asset) HasImage() bool {
	return a.OriginalKey != ""
}

// UploadInput contém o arquivo recebido.
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadResult devolve o registro criado, já resolvido, e o resultado da derivação.
type UploadResult struct {
	View   *View
	Status media.Status
}

// View é a representação servida aos clientes.
type View struct {
	Asset
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	OriginalURL  string `json:"original_url"`
}
