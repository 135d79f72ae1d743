package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, env := range []string{
		"BUGZILLA_DSN", "BUGZILLA_URL", "BUGZILLA_XREF_FIELD", "BUGZILLA_PLACEHOLDER_DOMAIN",
		"REDMINE_DSN", "REDMINE_URL", "REDMINE_MARKER_FIELD", "REDMINE_MANAGER_ROLE",
		"MIGRATE_FAIL_FAST",
	} {
		t.Setenv(env, "")
		require.NoError(t, os.Unsetenv(env))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultXRefField, config.Bugzilla.XRefField)
	assert.Equal(t, DefaultPlaceholderDomain, config.Bugzilla.PlaceholderDomain)
	assert.Equal(t, DefaultMarkerField, config.Redmine.MarkerField)
	assert.Equal(t, DefaultManagerRole, config.Redmine.ManagerRole)
	assert.Equal(t, DefaultAssignedStatus, config.Mapping.AssignedStatus)
	assert.Equal(t, DefaultResolvedStatus, config.Mapping.ResolvedStatus)
	assert.False(t, config.Migrate.FailFast)
	assert.Empty(t, config.Mapping.Status)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("BUGZILLA_DSN", "bugs:pwd@tcp(db:3306)/bugs")
	t.Setenv("BUGZILLA_URL", "https://bugzilla.example.com/")
	t.Setenv("REDMINE_DSN", "postgres://redmine@db/redmine")
	t.Setenv("REDMINE_URL", "https://redmine.example.com//")
	t.Setenv("REDMINE_MARKER_FIELD", "Legacy-Bug")
	t.Setenv("MIGRATE_FAIL_FAST", "true")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "bugs:pwd@tcp(db:3306)/bugs", config.Bugzilla.DSN)
	assert.Equal(t, "https://bugzilla.example.com", config.Bugzilla.URL)
	assert.Equal(t, "https://redmine.example.com", config.Redmine.URL)
	assert.Equal(t, "Legacy-Bug", config.Redmine.MarkerField)
	assert.True(t, config.Migrate.FailFast)
	require.NoError(t, ValidateMigrateConfig(config))
}

func TestLoadConfigFromFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDMINE_URL", "https://from-env.example.com")

	path := filepath.Join(t.TempDir(), "bzmigrate.yaml")
	content := `
bugzilla:
  dsn: "bugs@tcp(db)/bugs"
  url: "https://bugzilla.example.com"
  xref_field: cf_tracker_link
redmine:
  dsn: "postgres://redmine@db/redmine"
  url: "https://from-file.example.com"
mapping:
  assigned_status: Doing
  status:
    NEEDINFO: assigned
  priority:
    Highest: Immediate
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "cf_tracker_link", config.Bugzilla.XRefField)
	assert.Equal(t, "https://from-env.example.com", config.Redmine.URL)
	assert.Equal(t, "Doing", config.Mapping.AssignedStatus)
	assert.Equal(t, "assigned", config.Mapping.Status["needinfo"])
	assert.Equal(t, "Immediate", config.Mapping.Priority["highest"])
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearEnv(t)

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, config)
}

func TestValidateMigrateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Bugzilla: BugzillaConfig{DSN: "dsn", URL: "https://bugzilla.example.com"},
			Redmine:  RedmineConfig{DSN: "dsn", URL: "https://redmine.example.com", MarkerField: DefaultMarkerField},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		missing string
	}{
		{name: "All fields present", mutate: func(*Config) {}},
		{name: "Missing Bugzilla DSN", mutate: func(c *Config) { c.Bugzilla.DSN = "" }, missing: "BUGZILLA_DSN"},
		{name: "Missing Bugzilla URL", mutate: func(c *Config) { c.Bugzilla.URL = "" }, missing: "BUGZILLA_URL"},
		{name: "Missing Redmine DSN", mutate: func(c *Config) { c.Redmine.DSN = "" }, missing: "REDMINE_DSN"},
		{name: "Missing Redmine URL", mutate: func(c *Config) { c.Redmine.URL = "" }, missing: "REDMINE_URL"},
		{name: "Missing marker field", mutate: func(c *Config) { c.Redmine.MarkerField = "" }, missing: "REDMINE_MARKER_FIELD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)

			err := ValidateMigrateConfig(config)
			if tt.missing == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.missing)
			}
		})
	}
}

func TestValidateStatusConfig(t *testing.T) {
	config := &Config{Redmine: RedmineConfig{MarkerField: DefaultMarkerField}}
	err := ValidateStatusConfig(config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDMINE_DSN")

	config.Redmine.DSN = "postgres://redmine@db/redmine"
	assert.NoError(t, ValidateStatusConfig(config))
}
