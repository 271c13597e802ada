package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncconfig"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize the local database",
	Long:    `Creates the local SQLite database and a device identity.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		if _, err := os.Stat(filepath.Join(dir, "aurasync.db")); err == nil {
			output.Warning("aurasync.db already exists")
			return nil
		}

		s, err := store.Initialize(dir)
		if err != nil {
			output.Error("failed to initialize database: %v", err)
			return err
		}
		defer s.Close()

		fmt.Printf("INITIALIZED %s\n", filepath.Join(dir, "aurasync.db"))

		deviceID, err := syncconfig.GetDeviceID()
		if err != nil {
			output.Error("failed to create device identity: %v", err)
			return err
		}
		fmt.Printf("Device: %s\n", deviceID)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
