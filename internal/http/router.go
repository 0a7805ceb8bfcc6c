package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/galeria/internal/asset"
	"github.com/gestaozabele/galeria/internal/config"
	httpmiddleware "github.com/gestaozabele/galeria/internal/http/middleware"
	"github.com/gestaozabele/galeria/internal/media"
)

// ImageService é o contrato usado pelos handlers de imagens.
type ImageService interface {
	Upload(ctx context.Context, input asset.UploadInput) (*asset.UploadResult, error)
	Get(ctx context.Context, id uuid.UUID) (*asset.View, error)
	List(ctx context.Context, limit, offset int) ([]asset.View, error)
	Rederive(ctx context.Context, id uuid.UUID) (media.Status, error)
}

// Pinger é satisfeito pelo pool do Postgres.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger adapta o cliente Redis a Pinger; cliente nil devolve nil.
func RedisPinger(client redis.UniversalClient) Pinger {
	if client == nil {
		return nil
	}
	return redisPinger{client: client}
}

type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Dependencies reúne o que o roteador precisa; Redis e Metrics são opcionais.
type Dependencies struct {
	Config  *config.Config
	DB      Pinger
	Redis   Pinger
	Images  ImageService
	Metrics prometheus.Gatherer
}

type Handler struct {
	cfg     *config.Config
	db      Pinger
	redis   Pinger
	images  ImageService
	limiter *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config

	h := &Handler{
		cfg:     cfg,
		db:      deps.DB,
		redis:   deps.Redis,
		images:  deps.Images,
		limiter: httpmiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}

	httpLogger := log.With().Str("component", "http").Logger()

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging(httpLogger))
	r.Use(httpmiddleware.Recover(httpLogger))
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	if cfg.MetricsEnabled && deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/images", func(images chi.Router) {
		images.Use(httpmiddleware.IPRateLimit(h.limiter))
		images.Post("/", h.UploadImage)
		images.Get("/", h.ListImages)
		images.Get("/{id}", h.GetImage)
		images.Post("/{id}/thumbnail", h.RederiveImage)
	})

	if cfg.Storage.Provider == "filesystem" && cfg.Storage.MediaRoot != "" {
		mount := mediaMountPath(cfg.Storage.MediaBaseURL)
		if mount == "/images" || strings.HasPrefix(mount, "/images/") {
			log.Warn().Str("media_base_url", cfg.Storage.MediaBaseURL).Msg("MEDIA_BASE_URL colide com /images; arquivos não serão servidos")
			mount = ""
		}
		if mount != "" {
			r.Handle(mount+"/*", http.StripPrefix(mount+"/", mediaFileServer(cfg.Storage.MediaRoot)))
		}
	}

	return r
}

// Health indica que o processo está de pé.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis (quando configurado).
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var dbErr, redisErr error
	if h.db != nil {
		dbErr = h.db.Ping(ctx)
	}
	if h.redis != nil {
		redisErr = h.redis.Ping(ctx)
	}

	if dbErr != nil || redisErr != nil {
		WriteError(w, r, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// mediaMountPath devolve o caminho local de MEDIA_BASE_URL (sem barra final).
// URL de outro host ou a raiz não são montadas: as URLs geradas apontam para fora.
func mediaMountPath(baseURL string) string {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	mount := "/" + strings.Trim(u.Path, "/")
	if mount == "/" {
		return ""
	}
	return mount
}

// mediaFileServer serve o diretório do backend filesystem sem listagem.
// Nomes iniciados por ponto (temporários de escrita) não são servidos.
func mediaFileServer(root string) http.Handler {
	fs := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path
		if name == "" || strings.HasSuffix(name, "/") {
			http.NotFound(w, r)
			return
		}
		for _, segment := range strings.Split(name, "/") {
			if strings.HasPrefix(segment, ".") {
				http.NotFound(w, r)
				return
			}
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fs.ServeHTTP(w, r)
	})
}
