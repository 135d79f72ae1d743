// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration parameters for the application. It is built
// once at startup and treated as read-only afterwards.
type Config struct {
	Bugzilla BugzillaConfig
	Redmine  RedmineConfig
	Migrate  MigrateConfig
	Mapping  MappingConfig
}

// BugzillaConfig holds Bugzilla (source) specific configuration.
type BugzillaConfig struct {
	// DSN is a go-sql-driver/mysql data source name
	DSN string
	// URL is the web base address used to build links to bugs and attachments
	URL string
	// XRefField is the bugs column that receives the Redmine issue address
	XRefField string
	// PlaceholderDomain completes logins that are not e-mail addresses
	PlaceholderDomain string
}

// RedmineConfig holds Redmine (destination) specific configuration.
type RedmineConfig struct {
	// DSN is a PostgreSQL connection string understood by pgx
	DSN string
	// URL is the web base address used to build links to issues
	URL string
	// MarkerField is the issue custom field holding the Bugzilla bug id
	MarkerField string
	// ManagerRole is the role whose first member becomes the fallback user
	ManagerRole string
}

// MigrateConfig holds run behaviour settings.
type MigrateConfig struct {
	FailFast bool
}

// MappingConfig holds overrides for the built-in mapping tables.
type MappingConfig struct {
	// Status maps a Bugzilla status to default, closed, assigned or resolved
	Status map[string]string
	// Priority maps a Bugzilla priority to a Redmine priority name
	Priority map[string]string

	AssignedStatus string
	ResolvedStatus string
}

// Defaults for optional settings.
const (
	DefaultXRefField         = "cf_redmine_issue"
	DefaultPlaceholderDomain = "foo.bar"
	DefaultMarkerField       = "Bugzilla-Task"
	DefaultManagerRole       = "Manager"
	DefaultAssignedStatus    = "In Progress"
	DefaultResolvedStatus    = "Resolved"
)

// LoadConfig loads configuration from environment variables and, when
// configFile is not empty, from that file. Environment variables win over
// file values.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("bugzilla.xref_field", DefaultXRefField)
	v.SetDefault("bugzilla.placeholder_domain", DefaultPlaceholderDomain)
	v.SetDefault("redmine.marker_field", DefaultMarkerField)
	v.SetDefault("redmine.manager_role", DefaultManagerRole)
	v.SetDefault("migrate.fail_fast", false)
	v.SetDefault("mapping.assigned_status", DefaultAssignedStatus)
	v.SetDefault("mapping.resolved_status", DefaultResolvedStatus)

	// Map specific environment variables
	bindings := map[string]string{
		"bugzilla.dsn":                "BUGZILLA_DSN",
		"bugzilla.url":                "BUGZILLA_URL",
		"bugzilla.xref_field":         "BUGZILLA_XREF_FIELD",
		"bugzilla.placeholder_domain": "BUGZILLA_PLACEHOLDER_DOMAIN",
		"redmine.dsn":                 "REDMINE_DSN",
		"redmine.url":                 "REDMINE_URL",
		"redmine.marker_field":        "REDMINE_MARKER_FIELD",
		"redmine.manager_role":        "REDMINE_MANAGER_ROLE",
		"migrate.fail_fast":           "MIGRATE_FAIL_FAST",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	config := &Config{
		Bugzilla: BugzillaConfig{
			DSN:               v.GetString("bugzilla.dsn"),
			URL:               trimURL(v.GetString("bugzilla.url")),
			XRefField:         v.GetString("bugzilla.xref_field"),
			PlaceholderDomain: v.GetString("bugzilla.placeholder_domain"),
		},
		Redmine: RedmineConfig{
			DSN:         v.GetString("redmine.dsn"),
			URL:         trimURL(v.GetString("redmine.url")),
			MarkerField: v.GetString("redmine.marker_field"),
			ManagerRole: v.GetString("redmine.manager_role"),
		},
		Migrate: MigrateConfig{
			FailFast: v.GetBool("migrate.fail_fast"),
		},
		Mapping: MappingConfig{
			Status:         v.GetStringMapString("mapping.status"),
			Priority:       v.GetStringMapString("mapping.priority"),
			AssignedStatus: v.GetString("mapping.assigned_status"),
			ResolvedStatus: v.GetString("mapping.resolved_status"),
		},
	}

	return config, nil
}

func trimURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// ValidateMigrateConfig ensures everything a migration run needs is set.
func ValidateMigrateConfig(config *Config) error {
	var missingVars []string

	if config.Bugzilla.DSN == "" {
		missingVars = append(missingVars, "BUGZILLA_DSN")
	}
	if config.Bugzilla.URL == "" {
		missingVars = append(missingVars, "BUGZILLA_URL")
	}
	if config.Redmine.DSN == "" {
		missingVars = append(missingVars, "REDMINE_DSN")
	}
	if config.Redmine.URL == "" {
		missingVars = append(missingVars, "REDMINE_URL")
	}
	if config.Redmine.MarkerField == "" {
		missingVars = append(missingVars, "REDMINE_MARKER_FIELD")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateStatusConfig validates the settings needed to query migration markers.
func ValidateStatusConfig(config *Config) error {
	var missingVars []string

	if config.Redmine.DSN == "" {
		missingVars = append(missingVars, "REDMINE_DSN")
	}
	if config.Redmine.MarkerField == "" {
		missingVars = append(missingVars, "REDMINE_MARKER_FIELD")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
