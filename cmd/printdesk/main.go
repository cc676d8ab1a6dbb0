package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caosdev/printdesk/cmd/printdesk/commands"
	"github.com/caosdev/printdesk/logger"
)

var rootCmd = &cobra.Command{
	Use:   "printdesk",
	Short: "printdesk - single-slot print and scan console",
	Long: `printdesk - a web console for a shared printer/scanner station.

printdesk runs one external command at a time (a print or a scan),
streams its merged output live to every connected browser, and serves
scan results for download until they are reclaimed.

Available commands:
  serve   - Start the web console server
  config  - Show the effective configuration
  version - Show version information

Examples:
  printdesk serve              # Start on the configured port
  printdesk serve --port 9000  # Override the port
  printdesk config             # Inspect resolved configuration`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "config" || cmd.Name() == "version" {
			return nil
		}
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
