package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/danielolaszy/bzmigrate/internal/mapping"
	"github.com/danielolaszy/bzmigrate/internal/ui"
	"github.com/spf13/cobra"
)

// mappingsCmd prints the effective mapping tables.
var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Show how Bugzilla values map onto Redmine",
	Long: `Show the mapping tables used by migrate, after applying any overrides from
the config file: statuses, priorities, trackers, relation types and custom
field formats.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		tables, err := mappingTables(cfg)
		if err != nil {
			return err
		}
		printTables(cmd.OutOrStdout(), tables)
		return nil
	},
}

func printTables(out io.Writer, t mapping.Tables) {
	fmt.Fprintln(out, ui.RenderCategory("Status"))
	for _, code := range sortedKeys(t.Statuses) {
		target := string(t.Statuses[code])
		switch t.Statuses[code] {
		case mapping.RoleAssigned:
			target = fmt.Sprintf("%q (else default)", t.AssignedStatus)
		case mapping.RoleResolved:
			target = fmt.Sprintf("%q (else default)", t.ResolvedStatus)
		}
		fmt.Fprintf(out, "  %-12s -> %s\n", code, target)
	}
	fmt.Fprintf(out, "  %-12s -> default\n", "*")

	fmt.Fprintln(out, ui.RenderCategory("Priority"))
	for _, code := range sortedKeys(t.Priorities) {
		fmt.Fprintf(out, "  %-12s -> %q (else default)\n", code, t.Priorities[code])
	}
	fmt.Fprintf(out, "  %-12s -> default\n", "*")

	fmt.Fprintln(out, ui.RenderCategory("Tracker"))
	fmt.Fprintf(out, "  %-12s -> %q (else %q)\n", t.FeatureSeverity, t.FeatureTracker, t.BugTracker)
	fmt.Fprintf(out, "  %-12s -> %q\n", "*", t.BugTracker)

	fmt.Fprintln(out, ui.RenderCategory("Relation"))
	for kind := mapping.DuplicateOf; kind <= mapping.HasDuplicate; kind++ {
		fmt.Fprintf(out, "  %-12s -> %s\n", kind, t.Relation(kind))
	}

	fmt.Fprintln(out, ui.RenderCategory("Custom field format"))
	for kind := mapping.FieldString; kind <= mapping.FieldDate; kind++ {
		fmt.Fprintf(out, "  %-12s -> %s\n", kind, t.CustomFieldFormat(kind))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
