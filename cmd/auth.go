package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncclient"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncconfig"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Manage sync authentication",
	GroupID: "system",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an API key for the sync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		if serverURL == "" {
			serverURL = syncconfig.GetServerURL()
		}

		apiKey, _ := cmd.Flags().GetString("api-key")
		if apiKey == "" {
			fmt.Print("API key: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read api key: %w", err)
			}
			apiKey = strings.TrimSpace(line)
		}
		if apiKey == "" {
			return fmt.Errorf("api key required")
		}

		deviceID, err := syncconfig.GetDeviceID()
		if err != nil {
			return fmt.Errorf("get device id: %w", err)
		}

		client := syncclient.New(serverURL, apiKey, deviceID)
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if _, err := client.HealthCheck(ctx); err != nil {
			output.Warning("server not reachable, saving credentials anyway: %v", err)
		}

		creds, err := syncconfig.LoadAuth()
		if err != nil {
			creds = &syncconfig.AuthCredentials{}
		}
		creds.APIKey = apiKey
		creds.ServerURL = serverURL
		creds.DeviceID = deviceID

		if err := syncconfig.SaveAuth(creds); err != nil {
			output.Error("save credentials: %v", err)
			return err
		}

		output.Success("Logged in to %s", serverURL)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := syncconfig.ClearAuth(); err != nil {
			output.Error("clear credentials: %v", err)
			return err
		}
		output.Success("Logged out")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !syncconfig.IsAuthenticated() {
			output.Warning("not logged in (run: aurasync auth login)")
			return nil
		}
		creds, err := syncconfig.LoadAuth()
		if err != nil {
			return err
		}
		fmt.Printf("Server: %s\n", creds.ServerURL)
		fmt.Printf("Device: %s\n", creds.DeviceID)
		return nil
	},
}

func init() {
	authLoginCmd.Flags().String("api-key", "", "API key (prompted if omitted)")
	authLoginCmd.Flags().String("server", "", "sync server URL")
	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
