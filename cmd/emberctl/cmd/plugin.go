package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// pluginCmd represents the plugin command
var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage plugin installations",
	Long:  `Browse the plugin catalog and install, configure, or remove plugins.`,
}

// listPluginsCmd represents the plugin list command
var listPluginsCmd = &cobra.Command{
	Use:   "list",
	Short: "List available plugins and installation state",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Plugins []struct {
				Slug      string `json:"slug"`
				Label     string `json:"label"`
				Installed *struct {
					Enabled bool `json:"enabled"`
				} `json:"installed"`
			} `json:"plugins"`
		}
		if err := doRequest(http.MethodGet, "/v1/plugins", nil, &out); err != nil {
			return fmt.Errorf("failed to list plugins: %w", err)
		}

		if outputJSON {
			printOutput(out)
			return nil
		}
		for _, p := range out.Plugins {
			state := "not installed"
			if p.Installed != nil {
				state = "installed (disabled)"
				if p.Installed.Enabled {
					state = "installed"
				}
			}
			fmt.Printf("%-12s %-24s %s\n", p.Slug, p.Label, state)
		}
		return nil
	},
}

// installPluginCmd represents the plugin install command
var installPluginCmd = &cobra.Command{
	Use:   "install [slug] [config-json]",
	Short: "Install or reconfigure a plugin",
	Long: `Install a plugin for the token's organization, or update its
configuration if already installed.

Example:
  emberctl plugin install slack '{"webhook_url":"https://hooks.slack.com/services/T/B/x"}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgJSON, err := parseJSON(args[1])
		if err != nil {
			return fmt.Errorf("invalid config JSON: %w", err)
		}
		config := map[string]string{}
		for k, v := range cfgJSON {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("config value %q must be a string", k)
			}
			config[k] = s
		}
		disabled, _ := cmd.Flags().GetBool("disabled")

		var out map[string]any
		err = doRequest(http.MethodPut, "/v1/plugins/"+args[0], map[string]any{
			"enabled": !disabled,
			"config":  config,
		}, &out)
		if err != nil {
			return fmt.Errorf("failed to install plugin: %w", err)
		}

		if outputJSON {
			printOutput(out)
		} else {
			fmt.Printf("Installed plugin: %s\n", args[0])
		}
		return nil
	},
}

// getPluginCmd represents the plugin get command
var getPluginCmd = &cobra.Command{
	Use:   "get [slug]",
	Short: "Show a plugin's schema and installation state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := doRequest(http.MethodGet, "/v1/plugins/"+args[0], nil, &out); err != nil {
			return fmt.Errorf("failed to get plugin: %w", err)
		}
		printOutput(out)
		return nil
	},
}

// uninstallPluginCmd represents the plugin uninstall command
var uninstallPluginCmd = &cobra.Command{
	Use:   "uninstall [slug]",
	Short: "Remove a plugin installation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doRequest(http.MethodDelete, "/v1/plugins/"+args[0], nil, nil); err != nil {
			return fmt.Errorf("failed to uninstall plugin: %w", err)
		}
		fmt.Printf("Uninstalled plugin: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pluginCmd)
	pluginCmd.AddCommand(listPluginsCmd)
	pluginCmd.AddCommand(installPluginCmd)
	pluginCmd.AddCommand(getPluginCmd)
	pluginCmd.AddCommand(uninstallPluginCmd)

	installPluginCmd.Flags().Bool("disabled", false, "install without enabling")
}
