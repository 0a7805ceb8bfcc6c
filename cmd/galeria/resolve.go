package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gestaozabele/galeria/internal/media"
)

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <chave>",
		Short: "Mostra a URL servida para um original (miniatura se existir)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := media.NewResolver(a.backend).URL(cmd.Context(), args[0])
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}
