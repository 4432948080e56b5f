package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/readaloud/internal/index"
	"github.com/Zuo-Peng/readaloud/internal/open"
)

func openCmd() *cobra.Command {
	var hit int
	var play bool

	cmd := &cobra.Command{
		Use:   "open <source>",
		Short: "Open the CSV in $EDITOR at a prompt, or play its recording",
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

			if play {
				if hit < 0 {
					hit = 0
				}
				return open.PlayRecording(cmd.Context(), db, args[0], hit, cfg.Player.Command, cfg.Player.Args)
			}
			return open.OpenSource(db, args[0], hit)
		},
	}

	cmd.Flags().IntVar(&hit, "hit", -1, "0-based prompt position to jump to")
	cmd.Flags().BoolVar(&play, "play", false, "Play the recording for --hit with player.command")

	return cmd
}
