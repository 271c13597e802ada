package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
)

var createCmd = &cobra.Command{
	Use:     "create <collection> <json|->",
	Short:   "Create a record locally",
	Long:    `Writes a record to the local store. It is pushed on the next sync.`,
	GroupID: "data",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection := models.Collection(args[0])
		if !models.KnownCollection(collection) {
			return fmt.Errorf("unknown collection %q", args[0])
		}

		data, err := readPayload(args[1])
		if err != nil {
			return err
		}

		s, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		rec := &models.Record{Collection: collection, Data: data}
		if err := s.Create(rec); err != nil {
			output.Error("create: %v", err)
			return err
		}

		output.Success("Created %s/%s", collection, rec.LocalID)
		return nil
	},
}

// readPayload reads a JSON document from an argument or, for "-", stdin.
func readPayload(arg string) (json.RawMessage, error) {
	raw := []byte(arg)
	if arg == "-" {
		var err error
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func init() {
	rootCmd.AddCommand(createCmd)
}
