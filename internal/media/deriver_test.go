package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/galeria/internal/storage"
)

const originalKey = "images/2024/05/20240501123045.png"

func TestCenterSquare(t *testing.T) {
	cases := []struct {
		name string
		in   image.Rectangle
		want image.Rectangle
	}{
		{"landscape", image.Rect(0, 0, 1024, 768), image.Rect(128, 0, 896, 768)},
		{"portrait", image.Rect(0, 0, 300, 500), image.Rect(0, 100, 300, 400)},
		{"square", image.Rect(0, 0, 64, 64), image.Rect(0, 0, 64, 64)},
		{"odd-diff", image.Rect(0, 0, 5, 2), image.Rect(1, 0, 3, 2)},
		{"offset-origin", image.Rect(10, 20, 30, 60), image.Rect(10, 30, 30, 50)},
		{"single-pixel", image.Rect(0, 0, 1, 1), image.Rect(0, 0, 1, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CenterSquare(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got.Dx(), got.Dy())
		})
	}
}

// 1024x768 vira 50x50 a partir do quadrado central 768x768 (x=128).
func TestDeriveLandscapeDefaultSpec(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory("/media/")
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	original := encodePNG(t, 1024, 768, func(x, y int) color.Color {
		if x < 128 || x >= 896 {
			return red
		}
		return blue
	})
	require.NoError(t, storage.Put(ctx, backend, originalKey, original))

	d := NewDeriver(backend, DefaultRendition())
	status := d.Derive(ctx, originalKey)
	require.Equal(t, Success, status.Kind, status.String())
	assert.Equal(t, "images/2024/05/20240501123045_thumbnail.jpg", status.Key)

	thumb := decodeJPEG(t, readAll(t, backend, status.Key))
	assert.Equal(t, 50, thumb.Bounds().Dx())
	assert.Equal(t, 50, thumb.Bounds().Dy())

	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			r, _, b, _ := thumb.At(x, y).RGBA()
			require.Less(t, r>>8, uint32(40), "pixel (%d,%d) leaked from the cropped margin", x, y)
			require.Greater(t, b>>8, uint32(200))
		}
	}

	assert.Equal(t, original, readAll(t, backend, originalKey), "original must be untouched")
}

func TestDeriveShapeInvariant(t *testing.T) {
	sizes := [][2]int{{1, 1}, {3, 7}, {640, 480}, {480, 640}, {100, 100}, {2000, 10}}
	specs := []RenditionSpec{DefaultRendition(), {Width: 120, Height: 80}, {Width: 1, Height: 200}}
	ctx := context.Background()

	for _, spec := range specs {
		for _, size := range sizes {
			backend := storage.NewMemory("")
			require.NoError(t, storage.Put(ctx, backend, originalKey, encodePNG(t, size[0], size[1], solid(color.Gray{Y: 128}))))

			status := NewDeriver(backend, spec).Derive(ctx, originalKey)
			require.Equal(t, Success, status.Kind, "%v %v: %s", spec, size, status)

			thumb := decodeJPEG(t, readAll(t, backend, status.Key))
			assert.Equal(t, spec.Width, thumb.Bounds().Dx(), "%v %v", spec, size)
			assert.Equal(t, spec.Height, thumb.Bounds().Dy(), "%v %v", spec, size)
		}
	}
}

// Segunda derivação devolve AlreadyExists sem reescrever.
func TestDeriveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory("")
	require.NoError(t, storage.Put(ctx, backend, originalKey, encodePNG(t, 200, 100, solid(color.White))))
	d := NewDeriver(backend, DefaultRendition())

	first := d.Derive(ctx, originalKey)
	require.Equal(t, Success, first.Kind)
	before, ok := backend.Bytes(first.Key)
	require.True(t, ok)
	writes := backend.Writes()

	second := d.Derive(ctx, originalKey)
	assert.Equal(t, AlreadyExists, second.Kind)
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, writes, backend.Writes(), "no second write")

	after, _ := backend.Bytes(first.Key)
	assert.Equal(t, before, after)
}

// Sem imagem a derivação é no-op.
func TestDeriveNoImage(t *testing.T) {
	backend := storage.NewMemory("")
	status := NewDeriver(backend, DefaultRendition()).Derive(context.Background(), "  ")
	assert.Equal(t, NoImage, status.Kind)
	assert.Equal(t, 0, backend.Writes())
	assert.False(t, status.OK())
}

func TestDeriveReportsFailuresAsStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("not-an-image", func(t *testing.T) {
		backend := storage.NewMemory("")
		require.NoError(t, storage.Put(ctx, backend, originalKey, []byte("isto não é png")))
		status := NewDeriver(backend, DefaultRendition()).Derive(ctx, originalKey)
		assert.Equal(t, Failed, status.Kind)
		assert.NotEmpty(t, status.Reason)
		ok, _ := backend.Exists(ctx, DerivedKey(originalKey))
		assert.False(t, ok)
		assert.Equal(t, []byte("isto não é png"), readAll(t, backend, originalKey))
	})

	t.Run("missing-original", func(t *testing.T) {
		backend := storage.NewMemory("")
		status := NewDeriver(backend, DefaultRendition()).Derive(ctx, originalKey)
		assert.Equal(t, Failed, status.Kind)
		assert.ErrorIs(t, status.Err, storage.ErrNotFound)
	})

	t.Run("exists-fails", func(t *testing.T) {
		backend := &failingBackend{Memory: storage.NewMemory(""), existsErr: errors.New("timeout")}
		status := NewDeriver(backend, DefaultRendition()).Derive(ctx, originalKey)
		assert.Equal(t, Failed, status.Kind)
		assert.Contains(t, status.String(), "timeout")
	})

	t.Run("write-fails", func(t *testing.T) {
		backend := &brokenWriterBackend{Memory: storage.NewMemory("")}
		require.NoError(t, storage.Put(ctx, backend.Memory, originalKey, encodePNG(t, 10, 10, solid(color.Black))))
		status := NewDeriver(backend, DefaultRendition()).Derive(ctx, originalKey)
		assert.Equal(t, Failed, status.Kind)
		assert.Contains(t, status.Reason, "disco cheio")
	})
}

func TestDeriveRetriesOnlyOnExplicitCall(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory("")
	require.NoError(t, storage.Put(ctx, backend, originalKey, []byte("corrompido")))
	d := NewDeriver(backend, DefaultRendition())
	require.Equal(t, Failed, d.Derive(ctx, originalKey).Kind)

	require.NoError(t, storage.Put(ctx, backend, originalKey, encodePNG(t, 20, 30, solid(color.White))))
	assert.Equal(t, Success, d.Derive(ctx, originalKey).Kind)
}

func TestDeriveObserverCountsByStatus(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	obs, err := NewPrometheusObserver("teste", reg)
	require.NoError(t, err)

	again, err := NewPrometheusObserver("teste", reg)
	require.NoError(t, err, "registering twice reuses collectors")

	backend := storage.NewMemory("")
	require.NoError(t, storage.Put(ctx, backend, originalKey, encodePNG(t, 8, 8, solid(color.White))))
	d := NewDeriver(backend, DefaultRendition(), WithObserver(obs), WithJPEGQuality(75))

	d.Derive(ctx, originalKey)
	d.Derive(ctx, originalKey)
	d.Derive(ctx, "")

	assert.Equal(t, 1.0, testutil.ToFloat64(again.total.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.total.WithLabelValues("already_exists")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.total.WithLabelValues("no_image")))
}

func TestNewDeriverFallsBackToDefaultSpec(t *testing.T) {
	d := NewDeriver(storage.NewMemory(""), RenditionSpec{Width: 0, Height: 10})
	assert.Equal(t, DefaultRendition(), d.Spec())

	_, err := Thumbnail(image.NewRGBA(image.Rect(0, 0, 0, 0)), DefaultRendition())
	assert.Error(t, err)
}
