package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
)

var updateCmd = &cobra.Command{
	Use:     "update <collection> <id> <json|->",
	Short:   "Update a record locally",
	GroupID: "data",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection := models.Collection(args[0])
		if !models.KnownCollection(collection) {
			return fmt.Errorf("unknown collection %q", args[0])
		}

		data, err := readPayload(args[2])
		if err != nil {
			return err
		}

		s, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		rec, err := s.Get(collection, args[1])
		if errors.Is(err, store.ErrNotFound) {
			output.Error("no such record: %s/%s", collection, args[1])
			return err
		}
		if err != nil {
			return err
		}

		rec.Data = data
		if err := s.Update(rec); err != nil {
			output.Error("update: %v", err)
			return err
		}

		output.Success("Updated %s/%s", collection, rec.LocalID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
