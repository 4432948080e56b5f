package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/readaloud/internal/scan"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the CSV sources and how far each has been recorded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			sources, err := scan.ListSources(cfg.CSVDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sources) == 0 {
				fmt.Fprintf(out, "No .csv files in %s\n", cfg.CSVDir)
				return nil
			}

			layout := layoutFor(cfg)
			rows := make([][]string, 0, len(sources))
			for _, src := range sources {
				s, err := layout.Inspect(src.Path)
				if err != nil {
					rows = append(rows, []string{src.Name, "-", "-", "-", "-", err.Error()})
					continue
				}
				status := "in progress"
				switch {
				case s.Complete():
					status = "complete"
				case s.Completed() == 0:
					status = "new"
				}
				rows = append(rows, []string{
					s.Source,
					s.Date,
					strconv.Itoa(s.Total()),
					strconv.Itoa(s.Completed()),
					strconv.Itoa(s.Remaining()),
					status,
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Source", "Date", "Prompts", "Recorded", "Remaining", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				0, 0, 0, 0, 0, 60,
			))
			return nil
		},
	}
}
