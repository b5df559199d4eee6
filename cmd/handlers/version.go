package handlers

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version info, set at build time via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bookdigest %s (%s) %s/%s\n", Version, GitCommit, runtime.GOOS, runtime.GOARCH)
		},
	}
}
