package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
)

var (
	// ErrNotFound indica que nenhuma chave existe no backend.
	ErrNotFound = errors.New("storage: chave não encontrada")
	// ErrInvalidKey indica chave vazia ou que escapa do namespace.
	ErrInvalidKey = errors.New("storage: chave inválida")
)

// Writer é o stream de escrita de uma chave. Close confirma o conteúdo,
// Abort descarta o que foi escrito.
type Writer interface {
	io.WriteCloser
	Abort() error
}

// Backend define a capacidade de armazenamento consumida pelo pipeline de mídia.
// Implementações devem ser seguras para uso concorrente; escritas na mesma chave
// seguem last-writer-wins.
type Backend interface {
	Exists(ctx context.Context, key string) (bool, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Create(ctx context.Context, key string) (Writer, error)
	URL(key string) string
}

// Read abre key e garante o fechamento do stream em qualquer saída de fn.
func Read(ctx context.Context, b Backend, key string, fn func(io.Reader) error) error {
	rc, err := b.Open(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	return fn(rc)
}

// Write cria key e confirma o conteúdo somente quando fn termina sem erro.
// Erro ou panic em fn descartam a escrita.
func Write(ctx context.Context, b Backend, key string, fn func(io.Writer) error) (err error) {
	w, err := b.Create(ctx, key)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = w.Abort()
		}
	}()

	if err := fn(w); err != nil {
		return err
	}

	committed = true
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: confirmar %s: %w", key, err)
	}
	return nil
}

// Put grava data em key.
func Put(ctx context.Context, b Backend, key string, data []byte) error {
	return Write(ctx, b, key, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// CleanKey normaliza uma chave e rejeita caminhos fora do namespace.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	return cleaned, nil
}

// ContentType infere o content-type pela extensão da chave.
func ContentType(key string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(key))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func joinURL(base, key string) string {
	if base == "" {
		return "/" + key
	}
	return strings.TrimRight(base, "/") + "/" + key
}
