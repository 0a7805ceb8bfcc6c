package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port           int
	LogLevel       string
	DBDSN          string
	RedisURL       string
	AllowOrigins   []string
	RateLimit      RateLimitConfig
	MetricsEnabled bool
	Media          MediaConfig
	Storage        StorageConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// MediaConfig agrupa opções do pipeline de imagens.
type MediaConfig struct {
	Namespace      string
	MaxUploadBytes int64
	ThumbWidth     int
	ThumbHeight    int
	JPEGQuality    int
}

// StorageConfig descreve o backend de armazenamento selecionado.
type StorageConfig struct {
	Provider        string
	MediaRoot       string
	MediaBaseURL    string
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicURL     string
	ExistsCacheSize int
	ExistsCacheTTL  time.Duration
}

const (
	DefaultThumbWidth  = 50
	DefaultThumbHeight = 50
)

// Load carrega variáveis de ambiente e aplica defaults seguros.
// DB_DSN só é exigido por quem chama RequireDB.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info")))
	cfg.DBDSN = strings.TrimSpace(getEnv("DB_DSN", ""))
	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))

	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	rps, err := parseFloatEnv("RATE_LIMIT_RPS", 10)
	if err != nil || rps <= 0 {
		return nil, errors.New("RATE_LIMIT_RPS inválido")
	}
	burst, err := parseIntEnv("RATE_LIMIT_BURST", 20)
	if err != nil || burst <= 0 {
		return nil, errors.New("RATE_LIMIT_BURST inválido")
	}
	cfg.RateLimit = RateLimitConfig{RequestsPerSecond: rps, Burst: burst}

	cfg.MetricsEnabled, err = parseBoolEnv("METRICS_ENABLED", true)
	if err != nil {
		return nil, err
	}

	media, err := loadMedia()
	if err != nil {
		return nil, err
	}
	cfg.Media = media

	store, err := loadStorage()
	if err != nil {
		return nil, err
	}
	cfg.Storage = store

	return cfg, nil
}

// RequireDB falha quando DB_DSN não foi informado.
func (c *Config) RequireDB() error {
	if c.DBDSN == "" {
		return errors.New("DB_DSN obrigatório")
	}
	return nil
}

func loadMedia() (MediaConfig, error) {
	media := MediaConfig{
		Namespace: strings.Trim(strings.TrimSpace(getEnv("MEDIA_NAMESPACE", "images")), "/"),
	}
	if media.Namespace == "" {
		media.Namespace = "images"
	}

	width, err := parseIntEnv("THUMB_WIDTH", DefaultThumbWidth)
	if err != nil || width <= 0 {
		return MediaConfig{}, errors.New("THUMB_WIDTH inválido")
	}
	height, err := parseIntEnv("THUMB_HEIGHT", DefaultThumbHeight)
	if err != nil || height <= 0 {
		return MediaConfig{}, errors.New("THUMB_HEIGHT inválido")
	}
	media.ThumbWidth, media.ThumbHeight = width, height

	quality, err := parseIntEnv("THUMB_JPEG_QUALITY", 90)
	if err != nil || quality < 1 || quality > 100 {
		return MediaConfig{}, errors.New("THUMB_JPEG_QUALITY deve estar entre 1 e 100")
	}
	media.JPEGQuality = quality

	maxBytes, err := parseIntEnv("MEDIA_MAX_UPLOAD_BYTES", 10<<20)
	if err != nil || maxBytes <= 0 {
		return MediaConfig{}, errors.New("MEDIA_MAX_UPLOAD_BYTES inválido")
	}
	media.MaxUploadBytes = int64(maxBytes)

	return media, nil
}

func loadStorage() (StorageConfig, error) {
	store := StorageConfig{
		Provider:     strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", "filesystem"))),
		MediaRoot:    strings.TrimSpace(getEnv("MEDIA_ROOT", "./media")),
		MediaBaseURL: strings.TrimSpace(getEnv("MEDIA_BASE_URL", "/media/")),
		S3Endpoint:   strings.TrimSpace(getEnv("S3_ENDPOINT", "")),
		S3Region:     strings.TrimSpace(getEnv("S3_REGION", "auto")),
		S3Bucket:     strings.TrimSpace(getEnv("S3_BUCKET", "")),
		S3AccessKey:  strings.TrimSpace(getEnv("S3_ACCESS_KEY", "")),
		S3SecretKey:  strings.TrimSpace(getEnv("S3_SECRET_KEY", "")),
		S3PublicURL:  strings.TrimSpace(getEnv("S3_PUBLIC_URL", "")),
	}

	switch store.Provider {
	case "", "filesystem", "fs":
		store.Provider = "filesystem"
		if store.MediaRoot == "" {
			return StorageConfig{}, errors.New("MEDIA_ROOT obrigatório para filesystem")
		}
	case "memory", "s3", "r2", "cloudflare-r2":
	default:
		return StorageConfig{}, errors.New("STORAGE_PROVIDER não suportado: " + store.Provider)
	}

	size, err := parseIntEnv("EXISTS_CACHE_SIZE", 1024)
	if err != nil || size < 0 {
		return StorageConfig{}, errors.New("EXISTS_CACHE_SIZE inválido")
	}
	store.ExistsCacheSize = size

	ttl, err := parseDurationEnv("EXISTS_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return StorageConfig{}, err
	}
	store.ExistsCacheTTL = ttl

	return store, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseIntEnv(key string, def int) (int, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return n, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return f, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, errors.New(key + " inválido")
	}
	return b, nil
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}
