package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/readaloud/internal/index"
)

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Scan csv_dir and update the prompt search index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger, closer, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			errOut := cmd.ErrOrStderr()
			fmt.Fprintf(errOut, "Scanning %s...\n", cfg.CSVDir)

			stats, err := index.IndexAll(db, cfg.CSVDir, layoutFor(cfg), logger)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			fmt.Fprintf(errOut, "Done. %s\n", stats)
			return nil
		},
	}
}
