package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/danielolaszy/bzmigrate/internal/bugzilla"
	"github.com/danielolaszy/bzmigrate/internal/config"
	"github.com/danielolaszy/bzmigrate/internal/logging"
	"github.com/danielolaszy/bzmigrate/internal/mapping"
	"github.com/danielolaszy/bzmigrate/internal/migrate"
	"github.com/danielolaszy/bzmigrate/internal/redmine"
	"github.com/danielolaszy/bzmigrate/internal/ui"
	"github.com/spf13/cobra"
)

// migrateCmd copies the given bugs into a Redmine project.
var migrateCmd = &cobra.Command{
	Use:   "migrate [bug-id...]",
	Short: "Copy Bugzilla bugs into a Redmine project",
	Long: `Copy Bugzilla bugs into a Redmine project.

For every bug id, in the order given:

1. Bugs that do not exist, or already carry a Redmine marker, are skipped
2. A Redmine issue is created from the bug, with the first comment as description
3. Later comments become journal entries, oldest first
4. Attachments become journal entries linking back to Bugzilla
5. The Bugzilla bug gets a comment and a cross reference pointing at the issue
6. The issue's marker field is set to the bug id
7. CC entries that match Redmine users become watchers

Example:
  bzmigrate migrate --project website 101 102
  bzmigrate migrate -p website --bugs 101,102,103

The command exits with an error unless every requested bug was copied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := cmd.Flags().GetString("project")
		if err != nil {
			return err
		}
		if project == "" {
			return fmt.Errorf("project flag is required")
		}

		bugsFlag, err := cmd.Flags().GetStringSlice("bugs")
		if err != nil {
			return err
		}
		bugIDs, err := parseBugIDs(append(bugsFlag, args...))
		if err != nil {
			return err
		}
		if len(bugIDs) == 0 {
			return fmt.Errorf("at least one bug id must be given as an argument or with --bugs")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := config.ValidateMigrateConfig(cfg); err != nil {
			return err
		}

		failFast := cfg.Migrate.FailFast
		if cmd.Flags().Changed("fail-fast") {
			failFast, _ = cmd.Flags().GetBool("fail-fast")
		}

		noRunLog, _ := cmd.Flags().GetBool("no-run-log")
		if !noRunLog {
			runLog, err := logging.OpenRunLog(appName)
			if err != nil {
				logging.Warn("run log disabled", "error", err)
			} else {
				defer runLog.Close()
				logging.SetupLogger(io.MultiWriter(os.Stdout, runLog), logLevel())
				logging.Info("writing run log", "path", runLog.Name())
			}
		}

		tables, err := mappingTables(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		logging.Info("opening stores",
			"bugzilla_dsn", logging.MaskSensitive(cfg.Bugzilla.DSN),
			"redmine_dsn", logging.MaskSensitive(cfg.Redmine.DSN))

		source, err := bugzilla.Open(ctx, bugzilla.Config{DSN: cfg.Bugzilla.DSN, XRefField: cfg.Bugzilla.XRefField})
		if err != nil {
			return fmt.Errorf("failed to initialize bugzilla store: %w", err)
		}
		defer source.Close()

		dest, err := redmine.Open(ctx, redmine.Config{DSN: cfg.Redmine.DSN})
		if err != nil {
			return fmt.Errorf("failed to initialize redmine store: %w", err)
		}
		defer dest.Close()

		engine := migrate.NewEngine(source, dest, migrate.Options{
			BugzillaURL:       cfg.Bugzilla.URL,
			RedmineURL:        cfg.Redmine.URL,
			MarkerField:       cfg.Redmine.MarkerField,
			ManagerRole:       cfg.Redmine.ManagerRole,
			PlaceholderDomain: cfg.Bugzilla.PlaceholderDomain,
			Tables:            tables,
			FailFast:          failFast,
		})

		return runMigration(ctx, cmd.OutOrStdout(), engine, project, bugIDs)
	},
}

func init() {
	migrateCmd.Flags().StringP("project", "p", "", "Redmine project identifier")
	migrateCmd.Flags().StringSlice("bugs", []string{}, "Comma separated Bugzilla bug ids")
	migrateCmd.Flags().Bool("fail-fast", false, "Abort the batch on the first failing bug")
	migrateCmd.Flags().Bool("no-run-log", false, "Do not write the dated run log under ~/."+appName+"/logs")
}

type migrator interface {
	Migrate(ctx context.Context, projectIdentifier string, bugIDs []int64) (*migrate.Result, error)
}

// runMigration prints the banner, runs the batch and prints the summary.
func runMigration(ctx context.Context, out io.Writer, engine migrator, project string, bugIDs []int64) error {
	fmt.Fprintf(out, " *** Copying from Bugzilla to Redmine: requested bugs %d ***\n", len(bugIDs))

	result, err := engine.Migrate(ctx, project, bugIDs)
	if migrate.IsConfigError(err) {
		return err
	}

	printSummary(out, result)

	if err != nil {
		return err
	}
	if !result.Complete() {
		return fmt.Errorf("%d of %d requested bugs were not migrated", len(bugIDs)-len(result.Migrated), len(bugIDs))
	}
	return nil
}

func printSummary(out io.Writer, result *migrate.Result) {
	fmt.Fprintf(out, " *** Completed: copied bugs: %d/%d ***\n", len(result.Migrated), result.Requested)

	if len(result.Skipped) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s\n", ui.RenderCategory("Skipped bugs"))
	for _, skip := range result.Skipped {
		icon := ui.RenderWarn(ui.IconWarn)
		if skip.Reason == migrate.SkipFailed {
			icon = ui.RenderFail(ui.IconFail)
		}
		line := fmt.Sprintf("  %s %d: %s", icon, skip.BugID, skip.Reason)
		if skip.IssueID != 0 {
			line += fmt.Sprintf(" (Redmine issue #%d left incomplete)", skip.IssueID)
		}
		if skip.Err != nil {
			line += " " + ui.RenderMuted("("+skip.Err.Error()+")")
		}
		fmt.Fprintln(out, line)
	}
}

// parseBugIDs accepts plain or comma separated ids, with an optional leading '#'.
// Order and repeats are kept.
func parseBugIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, value := range values {
		for _, field := range strings.Split(value, ",") {
			field = strings.TrimPrefix(strings.TrimSpace(field), "#")
			if field == "" {
				continue
			}
			id, err := strconv.ParseInt(field, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid bug id %q", field)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func mappingTables(cfg *config.Config) (mapping.Tables, error) {
	tables, err := mapping.DefaultTables().WithOverrides(cfg.Mapping.Status, cfg.Mapping.Priority)
	if err != nil {
		return mapping.Tables{}, fmt.Errorf("invalid mapping configuration: %w", err)
	}
	if cfg.Mapping.AssignedStatus != "" {
		tables.AssignedStatus = cfg.Mapping.AssignedStatus
	}
	if cfg.Mapping.ResolvedStatus != "" {
		tables.ResolvedStatus = cfg.Mapping.ResolvedStatus
	}
	return tables, nil
}
