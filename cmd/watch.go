package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/netmon"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncconfig"
	"github.com/AuraTechWave/auraconnectai-sub011/pkg/monitor"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live sync dashboard",
	Long: `Opens a terminal dashboard showing connectivity, pending records,
queue depth, and conflicts. Stable reconnects trigger sync automatically.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		defer engine.Close()

		mon := netmon.New(netmon.WithDebounce(syncconfig.GetDebounce()))

		model := monitor.New(cmd.Context(), s, q, client, engine, mon, syncconfig.GetProbeInterval())
		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			output.Error("watch: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
