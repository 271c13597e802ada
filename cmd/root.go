package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// baseDir is the directory holding the local database. Resolved once at startup.
var baseDir string

// SetVersion sets the version string shown by --version
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "aurasync",
	Short: "Offline-first sync client for restaurant operations",
	Long: `aurasync keeps a local store of restaurant records (orders, shifts,
menu items, staff, customers) and synchronizes it with a central server.

All writes land locally first and are queued while offline. When
connectivity returns, queued mutations are replayed and local changes
are pushed after pulling the latest server state.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseDir, "dir", "", "data directory (default: current directory)")

	cobra.OnInitialize(initBaseDir)

	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")
}

func initBaseDir() {
	if baseDir != "" {
		return
	}
	if dir := os.Getenv("AURASYNC_DATA_DIR"); dir != "" {
		baseDir = dir
		return
	}
	var err error
	baseDir, err = os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
		os.Exit(1)
	}
}

// getBaseDir returns the data directory for the client
func getBaseDir() string {
	return baseDir
}
