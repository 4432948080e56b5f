package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/readaloud/internal/search"
)

const (
	sColorReset   = "\033[0m"
	sColorBoldRed = "\033[1;31m"
	sColorGreen   = "\033[1;32m"
	sColorDim     = "\033[2m"
)

func colorizeSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", sColorBoldRed)
	snippet = strings.ReplaceAll(snippet, "<<<", sColorReset)
	return snippet
}

func plainSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", "")
	return strings.ReplaceAll(snippet, "<<<", "")
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func searchCmd() *cobra.Command {
	var source, date string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across the prompts of all sources",
		Long: `Search indexed prompts using FTS5 (substring match for CJK queries).
On a terminal the results are shown as a table. When piped the output is TSV for fzf:
  source, position, date, recorded, snippet

Example:
  readaloud search "$*" | fzf --ansi --delimiter='\t' --with-nth=3.. \
    --preview 'readaloud preview {1} --hit {2} --context 3 --query {q}'`,
		Args: cobra.ExactArgs(1),
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

			db, err := openIndex(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			results, err := search.Search(db, search.Options{
				Query:  args[0],
				Source: source,
				Date:   date,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No results found.")
				return nil
			}

			if isTerminal(out) {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					mark := "○"
					if r.Recorded {
						mark = "●"
					}
					rows = append(rows, []string{
						r.SourceKey,
						strconv.Itoa(r.Number()),
						mark,
						oneLine(plainSnippet(r.Snippet)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Source", "#", "Rec", "Prompt"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
					0, 0, 0, 70,
				))
				return nil
			}

			for _, r := range results {
				recorded := "-"
				if r.Recorded {
					recorded = sColorGreen + "recorded" + sColorReset
				}
				// first two fields (source, position) stay plain for fzf {1} {2}
				fmt.Fprintf(out, "%s\t%d\t%s%s%s\t%s\t%s\n",
					r.SourceKey,
					r.Position,
					sColorDim, r.DateToken, sColorReset,
					recorded,
					colorizeSnippet(oneLine(r.Snippet)),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Filter by source file name")
	cmd.Flags().StringVar(&date, "date", "", "Filter by date token (DD_MM_YYYY)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")

	return cmd
}
