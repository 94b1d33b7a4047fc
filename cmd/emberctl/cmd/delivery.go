package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

type deliveryOut struct {
	ID         string `json:"id"`
	EventID    string `json:"event_id"`
	WebhookID  string `json:"webhook_id"`
	Status     string `json:"status"`
	Attempt    int    `json:"attempt"`
	HTTPStatus int    `json:"http_status"`
	LastError  string `json:"last_error"`
	ReplayOf   string `json:"replay_of"`
}

// deliveryCmd represents the delivery command
var deliveryCmd = &cobra.Command{
	Use:   "delivery",
	Short: "Inspect and replay webhook deliveries",
}

// listDeliveriesCmd represents the delivery list command
var listDeliveriesCmd = &cobra.Command{
	Use:   "list",
	Short: "List delivery attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if v, _ := cmd.Flags().GetString("event-id"); v != "" {
			q.Set("event_id", v)
		}
		if v, _ := cmd.Flags().GetString("webhook-id"); v != "" {
			q.Set("webhook_id", v)
		}
		if v, _ := cmd.Flags().GetInt("limit"); v > 0 {
			q.Set("limit", strconv.Itoa(v))
		}
		path := "/v1/deliveries"
		if enc := q.Encode(); enc != "" {
			path += "?" + enc
		}

		var out struct {
			Deliveries []deliveryOut `json:"deliveries"`
		}
		if err := doRequest(http.MethodGet, path, nil, &out); err != nil {
			return fmt.Errorf("failed to list deliveries: %w", err)
		}

		if outputJSON {
			printOutput(out)
			return nil
		}
		if len(out.Deliveries) == 0 {
			fmt.Println("No deliveries found")
			return nil
		}
		for _, d := range out.Deliveries {
			line := fmt.Sprintf("%s  %-9s attempt=%d http=%d", d.ID, d.Status, d.Attempt, d.HTTPStatus)
			if d.LastError != "" {
				line += "  err=" + d.LastError
			}
			fmt.Println(line)
		}
		return nil
	},
}

// replayCmd represents the delivery replay command
var replayCmd = &cobra.Command{
	Use:   "replay [delivery-id]",
	Short: "Replay a delivery",
	Long: `Enqueue a fresh delivery of the same event to the same webhook,
using the webhook's current URL and secret.

Example:
  emberctl delivery replay dlv_abc --reason "endpoint fixed"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")

		var out struct {
			DeliveryID string `json:"delivery_id"`
			ReplayOf   string `json:"replay_of"`
		}
		err := doRequest(http.MethodPost, "/v1/deliveries/"+args[0]+"/replay", map[string]any{
			"reason": reason,
		}, &out)
		if err != nil {
			return fmt.Errorf("failed to replay delivery: %w", err)
		}

		if outputJSON {
			printOutput(out)
		} else {
			fmt.Printf("Replayed delivery: %s (new delivery %s)\n", out.ReplayOf, out.DeliveryID)
		}
		return nil
	},
}

// dlqCmd represents the dlq command
var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "List dead-lettered deliveries",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if v, _ := cmd.Flags().GetString("webhook-id"); v != "" {
			q.Set("webhook_id", v)
		}
		if v, _ := cmd.Flags().GetInt("limit"); v > 0 {
			q.Set("limit", strconv.Itoa(v))
		}
		path := "/v1/dlq"
		if enc := q.Encode(); enc != "" {
			path += "?" + enc
		}

		var out struct {
			DLQ []deliveryOut `json:"dlq"`
		}
		if err := doRequest(http.MethodGet, path, nil, &out); err != nil {
			return fmt.Errorf("failed to list dlq: %w", err)
		}

		if outputJSON {
			printOutput(out)
			return nil
		}
		if len(out.DLQ) == 0 {
			fmt.Println("DLQ is empty")
			return nil
		}
		for _, d := range out.DLQ {
			fmt.Printf("%s  event=%s webhook=%s attempts=%d err=%s\n",
				d.ID, d.EventID, d.WebhookID, d.Attempt, d.LastError)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deliveryCmd)
	rootCmd.AddCommand(dlqCmd)
	deliveryCmd.AddCommand(listDeliveriesCmd)
	deliveryCmd.AddCommand(replayCmd)

	listDeliveriesCmd.Flags().String("event-id", "", "filter by event id")
	listDeliveriesCmd.Flags().String("webhook-id", "", "filter by webhook id")
	listDeliveriesCmd.Flags().Int("limit", 0, "maximum rows to return")
	replayCmd.Flags().String("reason", "", "reason recorded with the replay")
	dlqCmd.Flags().String("webhook-id", "", "filter by webhook id")
	dlqCmd.Flags().Int("limit", 0, "maximum rows to return")
}
