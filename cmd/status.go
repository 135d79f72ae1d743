package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/danielolaszy/bzmigrate/internal/config"
	"github.com/danielolaszy/bzmigrate/internal/migrate"
	"github.com/danielolaszy/bzmigrate/internal/redmine"
	"github.com/danielolaszy/bzmigrate/internal/ui"
	"github.com/spf13/cobra"
)

// statusCmd reports which bugs already have a Redmine issue.
var statusCmd = &cobra.Command{
	Use:   "status bug-id...",
	Short: "Check which Bugzilla bugs were already migrated",
	Long: `This command looks for each bug id in the Redmine marker custom field and
reports whether the bug was already copied. Nothing is written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bugIDs, err := parseBugIDs(args)
		if err != nil {
			return err
		}
		if len(bugIDs) == 0 {
			return fmt.Errorf("at least one bug id is required")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := config.ValidateStatusConfig(cfg); err != nil {
			return err
		}

		ctx := cmd.Context()
		dest, err := redmine.Open(ctx, redmine.Config{DSN: cfg.Redmine.DSN})
		if err != nil {
			return fmt.Errorf("failed to initialize redmine store: %w", err)
		}
		defer dest.Close()

		field, found, err := dest.FindCustomField(ctx, cfg.Redmine.MarkerField)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("issue custom field %q not found in Redmine", cfg.Redmine.MarkerField)
		}

		return reportStatus(ctx, cmd.OutOrStdout(), migrate.NewGuard(dest, field), bugIDs)
	},
}

type migrationChecker interface {
	AlreadyMigrated(ctx context.Context, bugID int64) (bool, error)
}

func reportStatus(ctx context.Context, out io.Writer, checker migrationChecker, bugIDs []int64) error {
	migrated := 0
	for _, id := range bugIDs {
		done, err := checker.AlreadyMigrated(ctx, id)
		if err != nil {
			return err
		}
		if done {
			migrated++
			fmt.Fprintf(out, "  %s %d: migrated\n", ui.RenderPass(ui.IconPass), id)
		} else {
			fmt.Fprintf(out, "  %s %d: not migrated\n", ui.RenderMuted(ui.IconSkip), id)
		}
	}

	fmt.Fprintln(out, "\nMigration status:", statusMessage(migrated, len(bugIDs)))
	return nil
}

func statusMessage(migrated, total int) string {
	if migrated == total {
		return "All requested bugs are in Redmine"
	}

	percentage := float64(migrated) / float64(total) * 100
	return fmt.Sprintf("%.1f%% migrated (%d/%d bugs)", percentage, migrated, total)
}
