package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bookdigest/internal/config"
	"bookdigest/internal/dedup"
	"bookdigest/internal/logger"
)

// NewCacheCmd creates the processed-ID cache management command
func NewCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the processed-bookmark cache",
		Long:  `Inspect and reset the persisted set of bookmark IDs that were already included in a past digest.`,
	}

	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCacheResetCmd())

	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show processed-ID cache statistics",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runCacheStats(); err != nil {
				logger.Error("Failed to get cache stats", err)
				os.Exit(1)
			}
		},
	}
}

func newCacheResetCmd() *cobra.Command {
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the cache (every bookmark becomes new again)",
		Long:  `Remove the processed-ID file. The next run treats every bookmark in the export as new.`,
		Run: func(cmd *cobra.Command, args []string) {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if err := runCacheReset(confirm); err != nil {
				logger.Error("Failed to reset cache", err)
				os.Exit(1)
			}
		},
	}

	resetCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	return resetCmd
}

func runCacheStats() error {
	cfg := config.Get()
	cache := dedup.Load(cfg.Cache.ProcessedIDsFile, dedup.Options{
		MaxIDs:      cfg.Cache.MaxIDs,
		MaxFailures: cfg.Cache.MaxFailures,
	})

	fmt.Printf("Cache file:        %s\n", cfg.Cache.ProcessedIDsFile)
	fmt.Printf("Processed IDs:     %d\n", cache.Size())
	fmt.Printf("Pending failures:  %d\n", cache.PendingFailures())
	fmt.Printf("ID cap:            %d\n", cfg.Cache.MaxIDs)

	return nil
}

func runCacheReset(confirm bool) error {
	if !confirm {
		fmt.Print("This makes every bookmark in the export new again. Continue? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" && response != "yes" {
			fmt.Println("Cache reset cancelled")
			return nil
		}
	}

	cfg := config.Get()
	cache := dedup.Load(cfg.Cache.ProcessedIDsFile, dedup.Options{})
	if err := cache.Reset(); err != nil {
		return fmt.Errorf("failed to reset cache: %w", err)
	}

	fmt.Println("Cache reset")
	return nil
}
