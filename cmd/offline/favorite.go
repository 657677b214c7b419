package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"news_offline/internal/domain"
)

var favoriteCmd = &cobra.Command{
	Use:   "favorite",
	Short: "Manage favorites",
}

var favoriteToggleCmd = &cobra.Command{
	Use:       "toggle <news|player> <id>",
	Short:     "Toggle a favorite, queueing it when the API is unreachable",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(domain.EntityNews), string(domain.EntityPlayer)},
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType := domain.EntityType(args[0])
		if !entityType.Valid() {
			return fmt.Errorf("unknown entity type %q", args[0])
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[1], err)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.close()

		a.monitor.Check(ctx)

		outcome, err := a.hooks.Favorites.Toggle(ctx, entityType, id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]bool{
			"isFavorited": outcome.IsFavorited,
			"queued":      outcome.Queued,
		})
	},
}

func init() {
	favoriteCmd.AddCommand(favoriteToggleCmd)
	rootCmd.AddCommand(favoriteCmd)
}
