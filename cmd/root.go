package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/agendacal/internal/config"
)

// rootCmd represents the base command for the agendacal application
var rootCmd = &cobra.Command{
	Use:   "agendacal",
	Short: "Rolling multi-day agenda over Google Calendar",
	Long: `agendacal aggregates the events of your Google calendars into a rolling
window of days and keeps it fresh.

It can run as:
  - A long-running server with a JSON API and scheduled refresh (serve)
  - An MCP (Model Context Protocol) server for AI assistants (serve --transport stdio)
  - A one-shot command printing the current window (agenda)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// configPath is the --config persistent flag.
var configPath string

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "agendacal version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path to the YAML config file. A missing file means built-in defaults.")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAgendaCmd())
	rootCmd.AddCommand(newVersionCmd())
}
