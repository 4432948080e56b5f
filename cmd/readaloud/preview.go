package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/readaloud/internal/index"
	"github.com/Zuo-Peng/readaloud/internal/render"
)

func previewCmd() *cobra.Command {
	var hit int
	var context int
	var width int
	var query string

	cmd := &cobra.Command{
		Use:   "preview <source>",
		Short: "Show the prompts of a source around a position, marking recorded ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			out, _, err := render.RenderSource(db, args[0], render.Options{
				HitPosition: hit,
				Context:     context,
				Width:       width,
				Query:       query,
			})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().IntVar(&hit, "hit", -1, "0-based prompt position to highlight")
	cmd.Flags().IntVar(&context, "context", 10, "Prompts before/after hit to show (-1 = all)")
	cmd.Flags().IntVar(&width, "width", 0, "Wrap width (0 = no wrap)")
	cmd.Flags().StringVar(&query, "query", "", "Search query for keyword highlighting")

	return cmd
}
