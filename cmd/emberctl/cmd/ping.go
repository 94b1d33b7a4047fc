package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// pingCmd represents the ping command
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping the EmberHook service",
	Long:  `Send a health check request to verify the EmberHook API is running and accessible.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := doRequest(http.MethodGet, "/healthz", nil, &out); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}

		if outputJSON {
			printOutput(out)
		} else {
			fmt.Println("Pong! Service is running")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
