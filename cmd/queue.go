package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/output"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	Short:   "Inspect the offline mutation queue",
	GroupID: "sync",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued operations",
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

		size, err := q.Size()
		if err != nil {
			return err
		}
		if size == 0 {
			output.Subtle("queue is empty")
			return nil
		}

		ops, err := q.DequeueBatch(size)
		if err != nil {
			return err
		}

		output.Title("%d queued operation(s)", len(ops))
		for _, op := range ops {
			line := fmt.Sprintf("  %s %s", op.Method.HTTPVerb(), op.Resource)
			if op.RetryCount > 0 {
				line += fmt.Sprintf("  (retries: %d)", op.RetryCount)
			}
			if op.Sensitive {
				line += "  [encrypted at rest]"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all queued operations",
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

		if err := q.Clear(); err != nil {
			output.Error("clear queue: %v", err)
			return err
		}
		output.Success("Queue cleared")
		return nil
	},
}

var queueAddCmd = &cobra.Command{
	Use:   "add <method> <resource> [json|-]",
	Short: "Queue an operation for replay on the next sync",
	Long: `Queues an API operation that is not modeled as a record, for example
a kitchen notification. Methods: create, read, update, delete.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, err := queue.ParseMethod(args[0])
		if err != nil {
			return err
		}

		var payload []byte
		if len(args) == 3 {
			raw, err := readPayload(args[2])
			if err != nil {
				return err
			}
			payload = raw
		}

		sensitive, _ := cmd.Flags().GetBool("sensitive")
		if !sensitive {
			// Operations against sensitive collections are always encrypted.
			for _, c := range models.Collections {
				if models.SensitiveCollection(c) && strings.Contains(args[1], string(c)) {
					sensitive = true
					break
				}
			}
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

		op := &queue.Operation{
			Method:    method,
			Resource:  args[1],
			Payload:   payload,
			Sensitive: sensitive,
		}
		if err := q.Enqueue(op); err != nil {
			output.Error("enqueue: %v", err)
			return err
		}

		output.Success("Queued %s %s", op.Method.HTTPVerb(), op.Resource)
		return nil
	},
}

func init() {
	queueAddCmd.Flags().Bool("sensitive", false, "encrypt the payload at rest")
	queueCmd.AddCommand(queueListCmd, queueClearCmd, queueAddCmd)
	rootCmd.AddCommand(queueCmd)
}
