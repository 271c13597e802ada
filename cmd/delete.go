package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <collection> <id>",
	Short:   "Delete a record locally",
	Long:    `Marks a record deleted. The tombstone is pushed on the next sync.`,
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

		if err := s.MarkDelete(collection, args[1]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				output.Error("no such record: %s/%s", collection, args[1])
			} else {
				output.Error("delete: %v", err)
			}
			return err
		}

		output.Success("Deleted %s/%s", collection, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
