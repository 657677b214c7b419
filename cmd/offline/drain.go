package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Replay queued changes once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.close()

		if !a.monitor.Check(ctx) {
			return fmt.Errorf("remote %s is unreachable", a.cfg.Remote.BaseURL)
		}

		stats, err := a.drain(ctx)
		if stats != nil {
			if perr := printJSON(cmd.OutOrStdout(), stats); perr != nil {
				return perr
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(drainCmd)
}
