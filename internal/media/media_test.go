package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/galeria/internal/storage"
)

// encodePNG gera um PNG w x h; fill decide a cor de cada pixel.
func encodePNG(t *testing.T, w, h int, fill func(x, y int) color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solid(c color.Color) func(int, int) color.Color {
	return func(int, int) color.Color { return c }
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

// failingBackend falha em Exists e conta aberturas.
type failingBackend struct {
	*storage.Memory
	existsErr error
}

func (f *failingBackend) Exists(ctx context.Context, key string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.Memory.Exists(ctx, key)
}

// brokenWriterBackend aceita a criação mas falha na escrita.
type brokenWriterBackend struct {
	*storage.Memory
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("disco cheio") }
func (brokenWriter) Close() error              { return nil }
func (brokenWriter) Abort() error              { return nil }

func (b *brokenWriterBackend) Create(ctx context.Context, key string) (storage.Writer, error) {
	return brokenWriter{}, nil
}

func readAll(t *testing.T, b storage.Backend, key string) []byte {
	t.Helper()
	var out []byte
	require.NoError(t, storage.Read(context.Background(), b, key, func(r io.Reader) error {
		var err error
		out, err = io.ReadAll(r)
		return err
	}))
	return out
}
