package main

import (
	"github.com/spf13/cobra"

	"news_offline/internal/domain"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the sync queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List changes waiting to be synced",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.close()

		items, err := a.queue.ListPending(ctx)
		if err != nil {
			return err
		}
		if items == nil {
			items = []domain.SyncQueueItem{}
		}
		return printJSON(cmd.OutOrStdout(), items)
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	rootCmd.AddCommand(queueCmd)
}
