package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gestaozabele/galeria/internal/storage"
	"github.com/gestaozabele/galeria/internal/util"
)

const (
	// DefaultNamespace prefixa as chaves dos originais.
	DefaultNamespace = "images"
	// DefaultMaxCollisionProbes limita os sufixos _1.._N tentados por Generate.
	DefaultMaxCollisionProbes = 100

	thumbnailSuffix    = "_thumbnail"
	thumbnailExtension = ".jpg"
	timestampLayout    = "20060102150405"
)

// ErrKeyExhausted indica que nenhuma chave livre foi encontrada.
var ErrKeyExhausted = errors.New("media: nenhuma chave livre disponível")

// PathGenerator atribui chaves aos originais no formato
// <namespace>/<ano>/<mês>/<AAAAMMDDhhmmss><ext>. Timestamps são em UTC.
type PathGenerator struct {
	storage   storage.Backend
	namespace string
	maxProbes int
}

// NewPathGenerator usa backend para detectar colisões; backend nil desliga a sondagem.
func NewPathGenerator(backend storage.Backend, namespace string) *PathGenerator {
	namespace = strings.Trim(strings.TrimSpace(namespace), "/")
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &PathGenerator{storage: backend, namespace: namespace, maxProbes: DefaultMaxCollisionProbes}
}

// Key devolve a chave candidata, sem consultar o backend.
func (g *PathGenerator) Key(at time.Time, filename string) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s%s", g.namespace, at.Year(), int(at.Month()), at.Format(timestampLayout), Extension(filename))
}

// Generate devolve a primeira chave livre. Duas chamadas no mesmo segundo
// recebem <ts><ext>, <ts>_1<ext>, <ts>_2<ext>... Uma chave só está livre
// quando nenhum original com o mesmo radical existe, em qualquer extensão,
// e a miniatura desse radical também não: a miniatura descarta a extensão.
// reserved são chaves já reivindicadas por quem chama e ainda não gravadas.
// A sondagem não é atômica.
func (g *PathGenerator) Generate(ctx context.Context, at time.Time, filename string, reserved ...string) (string, error) {
	key := g.Key(at, filename)
	ext := path.Ext(key)
	base := strings.TrimSuffix(key, ext)

	skip := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		skip[stem(r)] = struct{}{}
	}

	for i := 0; i <= g.maxProbes; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d", base, i)
		}
		taken, err := g.stemTaken(ctx, candidate, ext, skip)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate + ext, nil
		}
	}

	candidate := fmt.Sprintf("%s_%s", base, util.ShortID())
	taken, err := g.stemTaken(ctx, candidate, ext, skip)
	if err != nil {
		return "", err
	}
	if taken {
		return "", ErrKeyExhausted
	}
	return candidate + ext, nil
}

// stemTaken consulta a miniatura do radical e o radical com cada extensão aceita.
func (g *PathGenerator) stemTaken(ctx context.Context, base, ext string, skip map[string]struct{}) (bool, error) {
	if _, ok := skip[base]; ok {
		return true, nil
	}
	if g.storage == nil {
		return false, nil
	}

	probes := []string{DerivedKey(base), base + ext}
	if ext != "" {
		probes = append(probes, base)
	}
	for _, other := range util.ImageExtensions() {
		if other != ext {
			probes = append(probes, base+other)
		}
	}

	for _, key := range probes {
		exists, err := g.storage.Exists(ctx, key)
		if err != nil {
			return false, fmt.Errorf("media: verificar chave %s: %w", key, err)
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

func stem(key string) string {
	key = strings.TrimSpace(key)
	return strings.TrimSuffix(key, path.Ext(key))
}

// Extension devolve a extensão do nome do arquivo em minúsculas.
func Extension(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.ToLower(path.Ext(name))
}

// DerivedKey calcula a chave da miniatura a partir do original.
// É função pura; chave vazia devolve vazio.
func DerivedKey(originalKey string) string {
	base := stem(originalKey)
	if base == "" {
		return ""
	}
	return base + thumbnailSuffix + thumbnailExtension
}
