package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bookdigest/internal/config"
	"bookdigest/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bookdigest",
		Short: "Turn a bookmark export into a categorized Slack digest",
		Long: `bookdigest reads a social-media bookmark export file, filters out
bookmarks already seen in past runs, enriches new ones with web search
context, summarizes them in batches with an AI model, and delivers a
categorized digest to a Slack webhook.

Already-processed bookmark IDs persist across runs, so running on the same
export file twice sends nothing the second time.`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bookdigest.yaml)")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewCacheCmd())
	rootCmd.AddCommand(NewDigestCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if cfg.App.Debug {
		logger.SetLevel("debug")
	} else {
		logger.SetLevel(cfg.Logging.Level)
	}
}
