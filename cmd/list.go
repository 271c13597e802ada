package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
)

var listCmd = &cobra.Command{
	Use:     "list [collection]",
	Short:   "List records",
	GroupID: "data",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		includeDeleted, _ := cmd.Flags().GetBool("deleted")
		asJSON, _ := cmd.Flags().GetBool("json")

		collections := models.Collections
		if len(args) == 1 {
			c := models.Collection(args[0])
			if !models.KnownCollection(c) {
				return fmt.Errorf("unknown collection %q", args[0])
			}
			collections = []models.Collection{c}
		}

		s, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		var all []models.Record
		for _, c := range collections {
			recs, err := s.List(c, includeDeleted)
			if err != nil {
				return err
			}
			all = append(all, recs...)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(all)
		}

		if len(all) == 0 {
			output.Subtle("no records")
			return nil
		}
		for i := range all {
			fmt.Println(output.RecordLine(&all[i]))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("deleted", false, "include tombstones")
	listCmd.Flags().Bool("json", false, "output JSON")
	rootCmd.AddCommand(listCmd)
}
