package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/galeria/internal/config"
	"github.com/gestaozabele/galeria/internal/storage"
)

type staticKeys struct {
	keys []string
	err  error
}

func (s staticKeys) ListKeys(context.Context) ([]string, error) {
	return s.keys, s.err
}

func testApp() (*app, *storage.Memory) {
	backend := storage.NewMemory("https://cdn.exemplo.com")
	return &app{
		cfg: &config.Config{
			Media: config.MediaConfig{Namespace: "images", ThumbWidth: 50, ThumbHeight: 50, JPEGQuality: 80},
		},
		backend: backend,
	}, backend
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func putPNG(t *testing.T, backend storage.Backend, key string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 30, 20))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, storage.Put(context.Background(), backend, key, buf.Bytes()))
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCmd(&app{})
	for _, name := range []string{"key", "derive", "resolve", "backfill"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.NotEmpty(t, cmd.Short, name)
	}
}

func TestKeyCommand(t *testing.T) {
	a, backend := testApp()
	out, err := run(t, a, "key", "Foto.PNG", "--at", "2024-05-01T12:30:45Z")
	require.NoError(t, err)
	assert.Contains(t, out, "original:  images/2024/05/20240501123045.png")
	assert.Contains(t, out, "miniatura: images/2024/05/20240501123045_thumbnail.jpg")

	require.NoError(t, storage.Put(context.Background(), backend, "images/2024/05/20240501123045.png", []byte("x")))
	a, _ = testApp()
	a.backend = backend
	out, err = run(t, a, "key", "outra.png", "--at", "2024-05-01T12:30:45Z")
	require.NoError(t, err)
	assert.Contains(t, out, "images/2024/05/20240501123045_1.png")

	_, err = run(t, a, "key", "a.png", "--at", "ontem")
	assert.Error(t, err)
}

func TestDeriveAndResolveCommands(t *testing.T) {
	a, backend := testApp()
	const key = "images/2024/05/20240501123045.png"
	putPNG(t, backend, key)

	out, err := run(t, a, "resolve", key)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.exemplo.com/"+key+"\n", out)

	out, err = run(t, a, "derive", key)
	require.NoError(t, err)
	assert.Contains(t, out, "success")

	out, err = run(t, a, "derive", key)
	require.NoError(t, err)
	assert.Contains(t, out, "already_exists")

	out, err = run(t, a, "resolve", key)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.exemplo.com/images/2024/05/20240501123045_thumbnail.jpg\n", out)
}

func TestDeriveCommandFailsOnBrokenOriginal(t *testing.T) {
	a, backend := testApp()
	require.NoError(t, storage.Put(context.Background(), backend, "images/x.png", []byte("lixo")))

	out, err := run(t, a, "derive", "images/x.png")
	assert.Error(t, err)
	assert.Contains(t, out, "error")
}

func TestBackfillCommand(t *testing.T) {
	a, backend := testApp()
	keys := []string{"images/a.png", "images/b.png", "images/c.png"}
	for _, k := range keys[:2] {
		putPNG(t, backend, k)
	}
	require.NoError(t, storage.Put(context.Background(), backend, keys[2], []byte("corrompido")))
	a.assets = staticKeys{keys: keys}

	out, err := run(t, a, "backfill", "--concurrency", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "total: 3")
	assert.Contains(t, out, "success: 2")
	assert.Contains(t, out, "error: 1")

	out, err = run(t, a, "backfill")
	require.NoError(t, err)
	assert.Contains(t, out, "already_exists: 2")
	assert.True(t, strings.Index(out, "already_exists") < strings.Index(out, "error"), "saída ordenada")
}

func TestBackfillRequiresDatabase(t *testing.T) {
	a, _ := testApp()
	_, err := run(t, a, "backfill")
	assert.ErrorContains(t, err, "DB_DSN")

	a, _ = testApp()
	a.assets = staticKeys{err: errors.New("sem conexão")}
	_, err = run(t, a, "backfill")
	assert.ErrorContains(t, err, "sem conexão")
}

func TestExecuteReleasesResourcesWhenCommandFails(t *testing.T) {
	a, backend := testApp()
	require.NoError(t, storage.Put(context.Background(), backend, "images/x.png", []byte("lixo")))
	closed := 0
	a.closers = append(a.closers, func() { closed++ })

	err := execute(a, []string{"derive", "images/x.png"})
	assert.Error(t, err)
	assert.Equal(t, 1, closed)
	assert.Empty(t, a.closers)
}
