package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/galeria/internal/asset"
	"github.com/gestaozabele/galeria/internal/config"
	"github.com/gestaozabele/galeria/internal/db"
	internalhttp "github.com/gestaozabele/galeria/internal/http"
	"github.com/gestaozabele/galeria/internal/media"
	"github.com/gestaozabele/galeria/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.RequireDB(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisClient, err := db.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	backend, err := storage.New(cfg.Storage, redisClient)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	opts := []media.DeriverOption{
		media.WithJPEGQuality(cfg.Media.JPEGQuality),
		media.WithLogger(log.With().Str("component", "media").Logger()),
	}
	registry := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		observer, err := media.NewPrometheusObserver("galeria", registry)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		opts = append(opts, media.WithObserver(observer))
	}

	deriver := media.NewDeriver(backend,
		media.RenditionSpec{Width: cfg.Media.ThumbWidth, Height: cfg.Media.ThumbHeight},
		opts...,
	)

	repository := asset.NewRepository(pool)
	if err := repository.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	images := asset.NewService(repository, backend,
		media.NewPathGenerator(backend, cfg.Media.Namespace),
		deriver,
		log.With().Str("component", "asset").Logger(),
	)

	handler := internalhttp.NewRouter(internalhttp.Dependencies{
		Config:  cfg,
		DB:      pool,
		Redis:   internalhttp.RedisPinger(redisClient),
		Images:  images,
		Metrics: registry,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("storage", cfg.Storage.Provider).Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
