package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bookdigest/internal/config"
	"bookdigest/internal/core"
	"bookdigest/internal/logger"
	"bookdigest/internal/render"
	"bookdigest/internal/store"
)

// NewDigestCmd creates the digest archive inspection command
func NewDigestCmd() *cobra.Command {
	digestCmd := &cobra.Command{
		Use:   "digest",
		Short: "Inspect archived digests from past runs",
	}

	digestCmd.AddCommand(newDigestListCmd())
	digestCmd.AddCommand(newDigestShowCmd())

	return digestCmd
}

func newDigestListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived digests, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			limit, _ := cmd.Flags().GetInt("limit")
			if err := runDigestList(limit); err != nil {
				logger.Error("Failed to list digests", err)
				os.Exit(1)
			}
		},
	}

	listCmd.Flags().IntP("limit", "n", 20, "Maximum digests to list")
	return listCmd
}

func newDigestShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [digest-id]",
		Short: "Show an archived digest (the latest when no ID is given)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id := ""
			if len(args) > 0 {
				id = args[0]
			}
			if err := runDigestShow(id); err != nil {
				logger.Error("Failed to show digest", err)
				os.Exit(1)
			}
		},
	}
}

func openArchive() (*store.Store, error) {
	cfg := config.Get()
	archive, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open digest archive: %w", err)
	}
	return archive, nil
}

func runDigestList(limit int) error {
	archive, err := openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	records, err := archive.ListDigests(limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No archived digests")
		return nil
	}

	fmt.Printf("%-36s  %-10s  %9s  %7s  %s\n", "ID", "DATE", "BOOKMARKS", "DROPPED", "DELIVERED")
	for _, rec := range records {
		delivered := "no"
		if rec.Delivered {
			delivered = "yes"
		}
		fmt.Printf("%-36s  %-10s  %9d  %7d  %s\n",
			rec.ID, rec.Date.Format("2006-01-02"), rec.TotalCount, rec.DroppedCount, delivered)
	}

	stats, err := archive.GetArchiveStats()
	if err == nil && stats.UndeliveredCount > 0 {
		fmt.Printf("\n%d digest(s) were generated but never delivered\n", stats.UndeliveredCount)
	}
	return nil
}

func runDigestShow(id string) error {
	archive, err := openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	var digest *core.Digest
	var delivered bool
	if id == "" {
		digest, delivered, err = archive.GetLatestDigest()
	} else {
		digest, delivered, err = archive.GetDigest(id)
	}
	if err != nil {
		return err
	}
	if digest == nil {
		fmt.Println("Digest not found")
		return nil
	}

	fmt.Print(render.RenderMarkdown(*digest))
	if !delivered {
		fmt.Println("\n(this digest was never delivered)")
	}
	return nil
}
