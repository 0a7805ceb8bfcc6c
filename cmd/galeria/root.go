package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gestaozabele/galeria/internal/asset"
	"github.com/gestaozabele/galeria/internal/config"
	"github.com/gestaozabele/galeria/internal/db"
	"github.com/gestaozabele/galeria/internal/media"
	"github.com/gestaozabele/galeria/internal/storage"
)

type keyLister interface {
	ListKeys(ctx context.Context) ([]string, error)
}

// app guarda as dependências montadas a partir do ambiente. Campos já
// preenchidos não são recriados.
type app struct {
	cfg     *config.Config
	backend storage.Backend
	deriver *media.Deriver
	paths   *media.PathGenerator
	assets  keyLister

	closers []func()
}

// execute roda o comando e sempre libera as conexões abertas, inclusive em erro.
func execute(a *app, args []string) error {
	defer a.close()
	root := newRootCmd(a)
	if args != nil {
		root.SetArgs(args)
	}
	return root.Execute()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "galeria",
		Short:        "Ferramentas do pipeline de miniaturas",
		Long:         "galeria gera chaves, deriva miniaturas e resolve URLs usando o storage configurado no ambiente.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}

	root.AddCommand(newKeyCmd(a))
	root.AddCommand(newDeriveCmd(a))
	root.AddCommand(newResolveCmd(a))
	root.AddCommand(newBackfillCmd(a))
	return root
}

func (a *app) init(ctx context.Context) error {
	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		a.cfg = cfg
	}
	if level, err := zerolog.ParseLevel(a.cfg.LogLevel); err == nil && a.cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(level)
	}

	if a.backend == nil {
		client, err := db.NewRedis(ctx, a.cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis indisponível; seguindo sem cache compartilhado")
		}
		if client != nil {
			a.closers = append(a.closers, func() { _ = client.Close() })
		}

		backend, err := storage.New(a.cfg.Storage, client)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		a.backend = backend
	}

	if a.deriver == nil {
		a.deriver = media.NewDeriver(a.backend,
			media.RenditionSpec{Width: a.cfg.Media.ThumbWidth, Height: a.cfg.Media.ThumbHeight},
			media.WithJPEGQuality(a.cfg.Media.JPEGQuality),
			media.WithLogger(log.With().Str("component", "media").Logger()),
		)
	}
	if a.paths == nil {
		a.paths = media.NewPathGenerator(a.backend, a.cfg.Media.Namespace)
	}
	return nil
}

// openAssets conecta ao Postgres sob demanda; só o backfill precisa dele.
func (a *app) openAssets(ctx context.Context) (keyLister, error) {
	if a.assets != nil {
		return a.assets, nil
	}
	if err := a.cfg.RequireDB(); err != nil {
		return nil, err
	}
	pool, err := db.NewPool(ctx, a.cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	a.assets = asset.NewRepository(pool)
	return a.assets, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
