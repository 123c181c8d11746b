package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel string // Log verbosity level
	dataDir  string // Directory receiving the per-session CSV logs
	dbPath   string // SQLite database holding persisted config and the record archive
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "fedcore",
	Short: "Behavioral core of a two-bottle operant feeding device",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; real environment variables take precedence.
		_ = godotenv.Load()

		if !cmd.Flags().Changed("log") {
			logLevel = envStr("FED_LOG_LEVEL", logLevel)
		}
		if !cmd.Flags().Changed("data-dir") {
			dataDir = envStr("FED_DATA_DIR", dataDir)
		}
		if !cmd.Flags().Changed("db") {
			dbPath = envStr("FED_DB_PATH", dbPath)
		}

		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "data", "Directory for session CSV logs")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "fed.db", "SQLite database for persisted configuration and the record archive")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
}
