package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncconfig"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncengine"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Sync local data with the remote server",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		pushOnly, _ := cmd.Flags().GetBool("push")
		pullOnly, _ := cmd.Flags().GetBool("pull")
		statusOnly, _ := cmd.Flags().GetBool("status")

		if !syncconfig.IsAuthenticated() {
			output.Error("not logged in (run: aurasync auth login)")
			return fmt.Errorf("not authenticated")
		}

		s, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		if statusOnly {
			return runSyncStatus(s)
		}

		q, err := newQueue(s)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		client, err := newClient()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		engine := newEngine(s, q, client)

		var res syncengine.Result
		switch {
		case pushOnly:
			res = engine.PushOnly(cmd.Context())
		case pullOnly:
			res = engine.PullOnly(cmd.Context())
		default:
			res = engine.Sync(cmd.Context())
		}

		if res.NoOp {
			output.Warning("sync already in progress")
			return nil
		}
		if !res.Success {
			output.Error("sync failed: %v", res.Err)
			return res.Err
		}

		output.Success("Synced: %d pushed, %d pulled, %d conflicts (%s)",
			res.Stats.Pushed, res.Stats.Pulled, res.Stats.Conflicts,
			res.Stats.Duration.Round(time.Millisecond))
		return nil
	},
}

func runSyncStatus(s *store.Store) error {
	last, err := s.LastSync()
	if err != nil {
		return err
	}
	pending, err := s.CountPending()
	if err != nil {
		return err
	}
	shadows, err := s.CountShadows()
	if err != nil {
		return err
	}

	var lastMillis int64
	if !last.IsZero() {
		lastMillis = last.UnixMilli()
	}

	output.Title("Sync status")
	fmt.Printf("  Last pull:  %s\n", output.RelativeTime(lastMillis))
	fmt.Printf("  Pending:    %d records\n", pending)
	fmt.Printf("  Conflicts:  %d shadows retained\n", shadows)
	return nil
}

func init() {
	syncCmd.Flags().Bool("push", false, "push local changes only")
	syncCmd.Flags().Bool("pull", false, "pull remote changes only")
	syncCmd.Flags().Bool("status", false, "show sync status without syncing")
	rootCmd.AddCommand(syncCmd)
}
