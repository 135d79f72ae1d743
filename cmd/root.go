// Package cmd provides the command-line interface for bzmigrate.
package cmd

import (
	"context"
	"os"

	"github.com/danielolaszy/bzmigrate/internal/config"
	"github.com/danielolaszy/bzmigrate/internal/logging"
	"github.com/spf13/cobra"
)

const appName = "bzmigrate"

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "bzmigrate copies Bugzilla bugs into a Redmine project",
	Long: `bzmigrate is a CLI tool that copies bugs from a Bugzilla database into a
Redmine project. Comments, attachment links and CC lists come along, authors
are matched to Redmine users, and both sides are annotated with a link to the
other. A bug is never copied twice.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.SetupLogger(os.Stdout, logLevel())
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (YAML, TOML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (default from LOG_LEVEL)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mappingsCmd)
}

func logLevel() logging.LogLevel {
	if level, _ := rootCmd.PersistentFlags().GetString("log-level"); level != "" {
		return logging.LogLevel(level)
	}
	return logging.LevelFromEnv()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.LoadConfig(configFile)
}
