package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/readaloud/internal/config"
	"github.com/Zuo-Peng/readaloud/internal/index"
	"github.com/Zuo-Peng/readaloud/internal/scan"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify folders, recorder, DB and FTS5",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "=== Folders ===")
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Path", "Status"},
				[][]string{
					{"csv_dir", cfg.CSVDir, dirStatus(cfg.CSVDir)},
					{"recordings_root", cfg.RecordingsRoot, dirStatus(cfg.RecordingsRoot)},
				},
				nil,
			))

			fmt.Fprintln(out, "\n=== Sources ===")
			reportSources(out, cfg)

			fmt.Fprintln(out, "\n=== Tools ===")
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Command", "Status"},
				[][]string{
					{"recorder", cfg.Recorder.Command, binaryStatus(cfg.Recorder.Command)},
					{"player", cfg.Player.Command, binaryStatus(cfg.Player.Command)},
				},
				nil,
			))

			fmt.Fprintln(out, "\n=== Database ===")
			fmt.Fprintf(out, "  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Fprintln(out, "  Status: NOT FOUND (run 'readaloud index' first)")
				return nil
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			sourceCount, err := db.SourceCount()
			if err != nil {
				return fmt.Errorf("count sources: %w", err)
			}
			promptCount, err := db.PromptCount()
			if err != nil {
				return fmt.Errorf("count prompts: %w", err)
			}
			takeCount, err := db.TakeCount()
			if err != nil {
				return fmt.Errorf("count takes: %w", err)
			}
			fmt.Fprintf(out, "  Sources: %d\n", sourceCount)
			fmt.Fprintf(out, "  Prompts: %d\n", promptCount)
			fmt.Fprintf(out, "  Takes:   %d\n", takeCount)

			fmt.Fprintln(out, "\n=== FTS5 ===")
			ftsCount, err := db.FTSCount()
			if err != nil {
				fmt.Fprintf(out, "  FTS5 error: %v\n", err)
			} else {
				fmt.Fprintf(out, "  FTS5 entries: %d\n", ftsCount)
				if ftsCount == promptCount {
					fmt.Fprintln(out, "  Status: OK (synced)")
				} else {
					fmt.Fprintf(out, "  Status: MISMATCH (prompts=%d, fts=%d)\n", promptCount, ftsCount)
				}
			}

			if info, err := os.Stat(cfg.DBPath); err == nil {
				sizeMB := float64(info.Size()) / 1024 / 1024
				fmt.Fprintf(out, "\n=== DB Size: %.1f MB ===\n", sizeMB)
			}
			return nil
		},
	}
}

func reportSources(out io.Writer, cfg *config.Config) {
	info, err := os.Stat(cfg.CSVDir)
	if err != nil || !info.IsDir() {
		fmt.Fprintln(out, "  (csv_dir missing)")
		return
	}
	sources, err := scan.ListSources(cfg.CSVDir)
	if err != nil {
		fmt.Fprintf(out, "  scan error: %v\n", err)
		return
	}
	layout := layoutFor(cfg)
	valid := 0
	for _, src := range sources {
		if _, err := layout.Inspect(src.Path); err != nil {
			fmt.Fprintf(out, "  %s: %v\n", src.Name, err)
			continue
		}
		valid++
	}
	fmt.Fprintf(out, "  CSV files: %d (%d usable)\n", len(sources), valid)
}

func dirStatus(path string) string {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return "NOT FOUND"
	case !info.IsDir():
		return "NOT A DIRECTORY"
	default:
		return "OK"
	}
}

func binaryStatus(name string) string {
	if name == "" {
		return "NOT CONFIGURED"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "NOT FOUND"
	}
	return "OK (" + path + ")"
}
