package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Read news articles",
}

var newsGetCmd = &cobra.Command{
	Use:   "get <slug>",
	Short: "Fetch an article, falling back to the cache when offline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.close()

		a.monitor.Check(ctx)

		res, err := a.hooks.News.BySlug(ctx, args[0])
		if err != nil {
			return err
		}
		if !res.Found {
			return fmt.Errorf("news %q not found", args[0])
		}
		if res.FromCache {
			a.logger.Info("served from local cache", "slug", args[0])
		}
		return printJSON(cmd.OutOrStdout(), res.Data)
	},
}

func init() {
	newsCmd.AddCommand(newsGetCmd)
	rootCmd.AddCommand(newsCmd)
}
