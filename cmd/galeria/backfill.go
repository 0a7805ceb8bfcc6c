package main

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gestaozabele/galeria/internal/media"
)

func newBackfillCmd(a *app) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Deriva miniaturas de todas as imagens registradas",
		Long:  "Percorre as imagens do banco (DB_DSN) e deriva as miniaturas que faltam. Miniaturas existentes não são reescritas.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			assets, err := a.openAssets(ctx)
			if err != nil {
				return err
			}
			keys, err := assets.ListKeys(ctx)
			if err != nil {
				return fmt.Errorf("listar imagens: %w", err)
			}

			if concurrency < 1 {
				concurrency = 1
			}

			var (
				mu     sync.Mutex
				counts = map[string]int{}
			)
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(concurrency)
			for _, key := range keys {
				key := key
				g.Go(func() error {
					status := a.deriver.Derive(gctx, key)
					if status.Kind == media.Failed {
						log.Warn().Str("key", key).Str("reason", status.Reason).Msg("backfill: derivação falhou")
					}
					mu.Lock()
					counts[status.Kind.String()]++
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			kinds := make([]string, 0, len(counts))
			for kind := range counts {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total: %d\n", len(keys))
			for _, kind := range kinds {
				fmt.Fprintf(out, "%s: %d\n", kind, counts[kind])
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "derivações simultâneas")
	return cmd
}
