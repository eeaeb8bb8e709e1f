package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the notetaker application
var rootCmd = &cobra.Command{
	Use:   "notetaker",
	Short: "Sends recording agents to calendar meetings and stores their transcripts",
	Long: `notetaker synchronizes connected calendars, sends a recording agent to
every meeting that has recording enabled, and stores the transcript and
attendees once the meeting is over.

It can run as:
  - A long-running service with an HTTP trigger API (serve)
  - A queue worker consuming sweep jobs (worker)
  - One-shot commands for sync, sweeps and migrations`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	logFormat  string
	logLevel   string
}

var flags globalFlags

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "notetaker version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "Path to a config file (yaml, json, toml or .env)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: json or text (overrides LOG_FORMAT)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())
}
