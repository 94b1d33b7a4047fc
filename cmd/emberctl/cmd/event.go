package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// eventCmd represents the event command
var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Dispatch events and list the event vocabulary",
}

// listEventsCmd represents the event list command
var listEventsCmd = &cobra.Command{
	Use:   "list",
	Short: "List the supported event types",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Events []struct {
				Value string `json:"value"`
				Label string `json:"label"`
			} `json:"events"`
		}
		if err := doRequest(http.MethodGet, "/v1/events", nil, &out); err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		if outputJSON {
			printOutput(out)
			return nil
		}
		for _, ev := range out.Events {
			fmt.Printf("%-28s %s\n", ev.Value, ev.Label)
		}
		return nil
	},
}

// dispatchCmd represents the event dispatch command
var dispatchCmd = &cobra.Command{
	Use:   "dispatch [event-type] [payload-json]",
	Short: "Dispatch a domain event",
	Long: `Dispatch a domain event with a JSON payload.

Example:
  emberctl event dispatch lead.created '{"id":"ld_789","name":"Ada Lovelace"}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventType := args[0]
		payload, err := parseJSON(args[1])
		if err != nil {
			return fmt.Errorf("invalid payload JSON: %w", err)
		}
		idempotencyKey, _ := cmd.Flags().GetString("idempotency-key")

		var headers []string
		if idempotencyKey != "" {
			headers = []string{"Idempotency-Key", idempotencyKey}
		}

		var out struct {
			EventID     string `json:"event_id"`
			Duplicate   bool   `json:"duplicate"`
			WebhookJobs int    `json:"webhook_jobs"`
			PluginJobs  int    `json:"plugin_jobs"`
		}
		err = doRequest(http.MethodPost, "/v1/dispatch", map[string]any{
			"event": eventType,
			"data":  payload,
		}, &out, headers...)
		if err != nil {
			return fmt.Errorf("failed to dispatch event: %w", err)
		}

		if outputJSON {
			printOutput(out)
		} else if out.Duplicate {
			fmt.Printf("Duplicate idempotency key, original event: %s\n", out.EventID)
		} else {
			fmt.Printf("Dispatched event: %s\n", out.EventID)
			fmt.Printf("  Webhook jobs: %d\n", out.WebhookJobs)
			fmt.Printf("  Plugin jobs: %d\n", out.PluginJobs)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventCmd)
	eventCmd.AddCommand(listEventsCmd)
	eventCmd.AddCommand(dispatchCmd)

	dispatchCmd.Flags().String("idempotency-key", "", "idempotency key for deduplication")
}
