package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/readaloud/internal/capture"
	"github.com/Zuo-Peng/readaloud/internal/session"
	"github.com/Zuo-Peng/readaloud/internal/tui"
)

func recordCmd() *cobra.Command {
	var device string
	var noLock bool

	cmd := &cobra.Command{
		Use:   "record [csv]",
		Short: "Record a take for each prompt of a CSV source",
		Long: `Opens the recording TUI. Without an argument a picker lists the CSV files in
csv_dir. Recordings are written to <recordings_root>/<DD_MM_YYYY>[/<folder_suffix>]/<n>.<ext>
and an interrupted session resumes after the highest numbered recording.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("record needs an interactive terminal")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger, closer, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			db, err := openIndex(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			opts := []session.Option{
				session.WithLogger(logger),
				session.WithJournal(db),
			}
			if cfg.LockDirs && !noLock {
				opts = append(opts, session.WithDirLock())
			}
			wf := session.New(layoutFor(cfg), opts...)
			defer wf.Close()

			if device == "" {
				device = cfg.Recorder.Device
			}
			rec := capture.NewCommandRecorder(cfg.Recorder.Command, cfg.Recorder.Args, device)

			var source string
			if len(args) == 1 {
				source = resolveSource(cfg.CSVDir, args[0])
			}

			logger.Info("record started",
				"csv_dir", cfg.CSVDir,
				"recordings_root", cfg.RecordingsRoot,
				"recorder", cfg.Recorder.Command,
				"device", device,
			)
			return tui.Run(cmd.Context(), wf, tui.Options{
				CSVDir:   cfg.CSVDir,
				Source:   source,
				Recorder: rec,
				Logger:   logger,
			})
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Capture device (overrides recorder.device), see 'readaloud devices'")
	cmd.Flags().BoolVar(&noLock, "no-lock", false, "Do not lock the recording folder")

	return cmd
}
