package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncconfig"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show local store and connectivity status",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		q, err := newQueue(s)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		output.Title("aurasync %s", version)

		for _, c := range models.Collections {
			recs, err := s.List(c, false)
			if err != nil {
				return err
			}
			if len(recs) > 0 {
				fmt.Printf("  %-12s %d record(s)\n", c, len(recs))
			}
		}

		pending, err := s.CountPending()
		if err != nil {
			return err
		}
		qsize, err := q.Size()
		if err != nil {
			return err
		}
		fmt.Printf("  pending: %d record(s), %d queued operation(s)\n", pending, qsize)

		if !syncconfig.IsAuthenticated() {
			output.Warning("not logged in")
			return nil
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if _, err := client.HealthCheck(ctx); err != nil {
			output.Warning("server offline: %v", err)
		} else {
			output.Success("server online: %s", syncconfig.GetServerURL())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
