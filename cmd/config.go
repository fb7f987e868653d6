package cmd

import (
	"fmt"

	cfgpkg "github.com/KaramelBytes/datachat-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set DataChat configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "api_key: %s\n", mask(c.APIKey))
		fmt.Fprintf(out, "provider: %s\n", c.Provider)
		fmt.Fprintf(out, "model: %s\n", c.Model)
		if c.BaseURL != "" {
			fmt.Fprintf(out, "base_url: %s\n", c.BaseURL)
		}
		fmt.Fprintf(out, "http_timeout_sec: %d\n", c.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", c.RetryMaxAttempts)
		fmt.Fprintf(out, "retry_base_delay_ms: %d\n", c.RetryBaseDelayMs)
		fmt.Fprintf(out, "retry_max_delay_ms: %d\n", c.RetryMaxDelayMs)
		fmt.Fprintf(out, "ollama_host: %s\n", c.OllamaHost)
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(out, "server_addr: %s\n", c.ServerAddr)
		fmt.Fprintf(out, "max_upload_mb: %d\n", c.MaxUploadMB)
		fmt.Fprintf(out, "session_idle_min: %d\n", c.SessionIdleMin)
		if c.CSVDelimiter != "" {
			fmt.Fprintf(out, "csv_delimiter: %q\n", c.CSVDelimiter)
		}
		if c.SheetName != "" {
			fmt.Fprintf(out, "sheet_name: %s\n", c.SheetName)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Start from the file and env only, so one-off flags are not persisted.
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = nil
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
