package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gestaozabele/galeria/internal/media"
)

func newKeyCmd(a *app) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "key <arquivo>",
		Short: "Mostra a chave que um upload receberia e a chave da miniatura",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at deve estar em RFC3339: %w", err)
				}
				when = parsed
			}

			key, err := a.paths.Generate(cmd.Context(), when, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "original:  %s\n", key)
			fmt.Fprintf(out, "miniatura: %s\n", media.DerivedKey(key))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "instante do upload (RFC3339); padrão é agora")
	return cmd
}
