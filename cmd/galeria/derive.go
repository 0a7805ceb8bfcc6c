package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gestaozabele/galeria/internal/media"
)

func newDeriveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "derive <chave>...",
		Short: "Gera a miniatura de cada original informado",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failures := 0
			for _, key := range args {
				status := a.deriver.Derive(cmd.Context(), key)
				if status.Kind == media.Failed {
					failures++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", key, status, status.Key)
			}
			if failures > 0 {
				return fmt.Errorf("%d derivação(ões) falharam", failures)
			}
			return nil
		},
	}
}
