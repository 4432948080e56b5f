package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/readaloud/internal/capture"
)

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices for recorder.device / record --device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			devices, err := capture.ListDevices(cmd.Context(), cfg.Recorder.Command)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No capture devices found.")
				return nil
			}

			rows := make([][]string, 0, len(devices))
			for _, d := range devices {
				current := ""
				if d.ID == cfg.Recorder.Device {
					current = "*"
				}
				rows = append(rows, []string{current, d.ID, d.Card, d.Label})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"", "Device", "Card", "Label"},
				rows,
				nil,
			))
			return nil
		},
	}
}
