package cmd

import (
	"log/slog"
	"os"

	"github.com/nfrund/collabhub/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "collabhub",
	Short: "Realtime presence and project room messaging",
	Long: `collabhub runs the realtime presence and room messaging server and
ships a small client for talking to it.

Available commands:
  serve     Start the HTTP and websocket server
  client    Connect to a server and chat in a project room
  token     Issue a development connect token
  topics    List the event bus topics
  version   Print the version

Use "collabhub [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.New())
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
