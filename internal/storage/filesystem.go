package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem grava objetos sob um diretório raiz e publica via baseURL.
type FileSystem struct {
	root    string
	baseURL string
}

// NewFileSystem cria o diretório raiz se necessário.
func NewFileSystem(root, baseURL string) (*FileSystem, error) {
	if root == "" {
		return nil, errors.New("storage: diretório raiz obrigatório")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: criar raiz: %w", err)
	}
	return &FileSystem{root: abs, baseURL: baseURL}, nil
}

// Root devolve o diretório servido pelo backend.
func (f *FileSystem) Root() string {
	return f.root
}

func (f *FileSystem) path(key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}

func (f *FileSystem) Exists(ctx context.Context, key string) (bool, error) {
	p, err := f.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (f *FileSystem) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

// Create escreve em arquivo temporário no mesmo diretório; Close faz o rename,
// então leitores nunca veem arquivo parcial.
func (f *FileSystem) Create(ctx context.Context, key string) (Writer, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: criar diretório: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("storage: criar temporário: %w", err)
	}
	return &fileWriter{tmp: tmp, target: p}, nil
}

func (f *FileSystem) URL(key string) string {
	return joinURL(f.baseURL, key)
}

type fileWriter struct {
	tmp    *os.File
	target string
	done   bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *fileWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.tmp.Close(); err != nil {
		_ = os.Remove(w.tmp.Name())
		return err
	}
	if err := os.Chmod(w.tmp.Name(), 0o644); err != nil {
		_ = os.Remove(w.tmp.Name())
		return err
	}
	if err := os.Rename(w.tmp.Name(), w.target); err != nil {
		_ = os.Remove(w.tmp.Name())
		return err
	}
	return nil
}

func (w *fileWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.tmp.Close()
	return os.Remove(w.tmp.Name())
}
