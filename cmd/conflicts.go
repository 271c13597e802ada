package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
)

var conflictsCmd = &cobra.Command{
	Use:     "conflicts",
	Short:   "Inspect and review sync conflicts",
	GroupID: "sync",
}

var conflictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show retained conflict shadows",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 || limit > 1000 {
			output.Error("limit must be between 1 and 1000")
			return fmt.Errorf("invalid limit: %d", limit)
		}

		s, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		shadows, err := s.ListShadows(limit)
		if err != nil {
			output.Error("query shadows: %v", err)
			return err
		}

		if len(shadows) == 0 {
			fmt.Println("No sync conflicts found.")
			return nil
		}

		fmt.Println("Overwritten local versions:")
		fmt.Printf("  %-6s %-21s %-12s %s\n", "ID", "TIME", "COLLECTION", "RECORD")
		for _, sh := range shadows {
			fmt.Printf("  %-6d %-21s %-12s %s\n",
				sh.ID,
				sh.OverwrittenAt.Format("2006-01-02 15:04:05"),
				sh.Collection,
				sh.LocalID,
			)
		}
		return nil
	},
}

var conflictsReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review conflict shadows interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		shadows, err := s.ListShadows(100)
		if err != nil {
			return err
		}
		if len(shadows) == 0 {
			fmt.Println("No sync conflicts to review.")
			return nil
		}

		for _, sh := range shadows {
			if err := reviewShadow(s, sh); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return err
			}
		}
		return nil
	},
}

func reviewShadow(s *store.Store, sh store.Shadow) error {
	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("%s/%s overwritten %s", sh.Collection, sh.LocalID,
					sh.OverwrittenAt.Format("2006-01-02 15:04"))).
				Description(fmt.Sprintf("local: %s\nserver: %s",
					truncate(string(sh.LocalData), 120),
					truncate(string(sh.ServerData), 120))).
				Options(
					huh.NewOption("Keep server version (dismiss shadow)", "keep"),
					huh.NewOption("Restore local version (re-push on next sync)", "restore"),
					huh.NewOption("Skip", "skip"),
				).
				Value(&choice),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return err
	}

	switch choice {
	case "keep":
		if err := s.DeleteShadow(sh.ID); err != nil {
			return err
		}
		output.Success("Kept server version of %s/%s", sh.Collection, sh.LocalID)
	case "restore":
		rec, err := s.Get(sh.Collection, sh.LocalID)
		if err != nil {
			return err
		}
		if err := s.PutResolved(sh.Collection, sh.LocalID, rec.ServerID, sh.LocalData, models.SyncPending); err != nil {
			return err
		}
		if err := s.DeleteShadow(sh.ID); err != nil {
			return err
		}
		output.Success("Restored local version of %s/%s", sh.Collection, sh.LocalID)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func init() {
	conflictsListCmd.Flags().Int("limit", 20, "Max shadows to show")
	conflictsCmd.AddCommand(conflictsListCmd, conflictsReviewCmd)
	rootCmd.AddCommand(conflictsCmd)
}
