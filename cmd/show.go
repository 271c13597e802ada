package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
)

var showCmd = &cobra.Command{
	Use:     "show <collection> <id>",
	Short:   "Show a record",
	GroupID: "data",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection := models.Collection(args[0])
		if !models.KnownCollection(collection) {
			return fmt.Errorf("unknown collection %q", args[0])
		}

		s, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		rec, err := s.Get(collection, args[1])
		if errors.Is(err, store.ErrNotFound) {
			// Fall back to the server-assigned id for records created remotely.
			rec, err = s.GetByServerID(collection, args[1])
		}
		if errors.Is(err, store.ErrNotFound) {
			output.Error("no such record: %s/%s", collection, args[1])
			return err
		}
		if err != nil {
			return err
		}

		fmt.Println(output.RecordLine(rec))
		if rec.ServerID != "" {
			output.Subtle("server id: %s", rec.ServerID)
		}

		var pretty json.RawMessage = rec.Data
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pretty)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
