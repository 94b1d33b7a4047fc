package cmd

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

type webhookOut struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	Secret    string   `json:"secret,omitempty"`
	Events    []string `json:"events"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// webhookCmd represents the webhook command
var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage webhook subscriptions",
	Long:  `Create and manage webhook subscriptions that will receive event deliveries.`,
}

// createWebhookCmd represents the webhook create command
var createWebhookCmd = &cobra.Command{
	Use:   "create [url] [events...]",
	Short: "Create a new webhook subscription",
	Long: `Create a new webhook subscription for the token's organization.

Example:
  emberctl webhook create https://example.com/hook lead.created contact.updated`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		events := args[1:]
		secret, _ := cmd.Flags().GetString("secret")

		var out webhookOut
		err := doRequest(http.MethodPost, "/v1/webhooks", map[string]any{
			"url":    url,
			"secret": secret,
			"events": events,
		}, &out)
		if err != nil {
			return fmt.Errorf("failed to create webhook: %w", err)
		}

		if outputJSON {
			printOutput(out)
		} else {
			fmt.Printf("Created webhook: %s\n", out.ID)
			fmt.Printf("  URL: %s\n", out.URL)
			fmt.Printf("  Secret: %s\n", out.Secret)
			fmt.Printf("  Events: %s\n", strings.Join(out.Events, ", "))
		}
		return nil
	},
}

// listWebhooksCmd represents the webhook list command
var listWebhooksCmd = &cobra.Command{
	Use:   "list",
	Short: "List webhook subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Webhooks []webhookOut `json:"webhooks"`
		}
		if err := doRequest(http.MethodGet, "/v1/webhooks", nil, &out); err != nil {
			return fmt.Errorf("failed to list webhooks: %w", err)
		}

		if outputJSON {
			printOutput(out)
			return nil
		}
		if len(out.Webhooks) == 0 {
			fmt.Println("No webhooks registered")
			return nil
		}
		for _, wh := range out.Webhooks {
			fmt.Printf("%s  %s  [%s]\n", wh.ID, wh.URL, strings.Join(wh.Events, ", "))
		}
		return nil
	},
}

// getWebhookCmd represents the webhook get command
var getWebhookCmd = &cobra.Command{
	Use:   "get [webhook-id]",
	Short: "Show one webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out webhookOut
		if err := doRequest(http.MethodGet, "/v1/webhooks/"+args[0], nil, &out); err != nil {
			return fmt.Errorf("failed to get webhook: %w", err)
		}

		if outputJSON {
			printOutput(out)
		} else {
			fmt.Printf("Webhook: %s\n", out.ID)
			fmt.Printf("  URL: %s\n", out.URL)
			fmt.Printf("  Events: %s\n", strings.Join(out.Events, ", "))
			fmt.Printf("  Created: %s\n", out.CreatedAt)
			fmt.Printf("  Updated: %s\n", out.UpdatedAt)
		}
		return nil
	},
}

// updateWebhookCmd represents the webhook update command
var updateWebhookCmd = &cobra.Command{
	Use:   "update [webhook-id]",
	Short: "Update a webhook subscription",
	Long: `Update a webhook subscription. Only the provided flags change;
omitted fields keep their current values.

Example:
  emberctl webhook update wh_abc --url https://example.com/hook2 --events lead.created,lead.updated`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := map[string]any{}
		if cmd.Flags().Changed("url") {
			u, _ := cmd.Flags().GetString("url")
			patch["url"] = u
		}
		if cmd.Flags().Changed("secret") {
			s, _ := cmd.Flags().GetString("secret")
			patch["secret"] = s
		}
		if cmd.Flags().Changed("events") {
			ev, _ := cmd.Flags().GetStringSlice("events")
			patch["events"] = ev
		}
		if len(patch) == 0 {
			return fmt.Errorf("nothing to update: pass --url, --secret, or --events")
		}

		var out webhookOut
		if err := doRequest(http.MethodPatch, "/v1/webhooks/"+args[0], patch, &out); err != nil {
			return fmt.Errorf("failed to update webhook: %w", err)
		}

		if outputJSON {
			printOutput(out)
		} else {
			fmt.Printf("Updated webhook: %s\n", out.ID)
			fmt.Printf("  URL: %s\n", out.URL)
			fmt.Printf("  Events: %s\n", strings.Join(out.Events, ", "))
		}
		return nil
	},
}

// deleteWebhookCmd represents the webhook delete command
var deleteWebhookCmd = &cobra.Command{
	Use:   "delete [webhook-id]",
	Short: "Delete a webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doRequest(http.MethodDelete, "/v1/webhooks/"+args[0], nil, nil); err != nil {
			return fmt.Errorf("failed to delete webhook: %w", err)
		}
		fmt.Printf("Deleted webhook: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(webhookCmd)
	webhookCmd.AddCommand(createWebhookCmd)
	webhookCmd.AddCommand(listWebhooksCmd)
	webhookCmd.AddCommand(getWebhookCmd)
	webhookCmd.AddCommand(updateWebhookCmd)
	webhookCmd.AddCommand(deleteWebhookCmd)

	createWebhookCmd.Flags().String("secret", "", "signing secret (if not provided, one will be generated)")
	updateWebhookCmd.Flags().String("url", "", "new destination URL")
	updateWebhookCmd.Flags().String("secret", "", "new signing secret")
	updateWebhookCmd.Flags().StringSlice("events", nil, "new event list (replaces the current set)")
}
