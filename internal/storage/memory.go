package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Memory mantém objetos em memória, útil para testes e execução local.
// Os dados são copiados na escrita e na leitura.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
	writes  int
}

// NewMemory cria backend vazio; baseURL prefixa as URLs devolvidas.
func NewMemory(baseURL string) *Memory {
	return &Memory{objects: make(map[string][]byte), baseURL: baseURL}
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	key, err := CleanKey(key)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return io.NopCloser(bytes.NewReader(cp)), nil
}

func (m *Memory) Create(ctx context.Context, key string) (Writer, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	return &memoryWriter{store: m, key: key}, nil
}

func (m *Memory) URL(key string) string {
	return joinURL(m.baseURL, key)
}

// Bytes devolve uma cópia do objeto armazenado.
func (m *Memory) Bytes(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true
}

// Writes conta quantas escritas foram confirmadas.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

type memoryWriter struct {
	store *Memory
	key   string
	buf   bytes.Buffer
	done  bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	data := make([]byte, w.buf.Len())
	copy(data, w.buf.Bytes())

	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.objects[w.key] = data
	w.store.writes++
	return nil
}

func (w *memoryWriter) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}
