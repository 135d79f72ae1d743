package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerLevels(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	testCases := []struct {
		name      string
		level     LogLevel
		shouldLog map[string]bool
	}{
		{
			name:      "Debug level",
			level:     LevelDebug,
			shouldLog: map[string]bool{"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true},
		},
		{
			name:      "Info level",
			level:     LevelInfo,
			shouldLog: map[string]bool{"DEBUG": false, "INFO": true, "WARN": true, "ERROR": true},
		},
		{
			name:      "Warn level",
			level:     LevelWarn,
			shouldLog: map[string]bool{"DEBUG": false, "INFO": false, "WARN": true, "ERROR": true},
		},
		{
			name:      "Error level",
			level:     LevelError,
			shouldLog: map[string]bool{"DEBUG": false, "INFO": false, "WARN": false, "ERROR": true},
		},
		{
			name:      "Upper case level",
			level:     LogLevel("DEBUG"),
			shouldLog: map[string]bool{"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true},
		},
		{
			name:      "Invalid level defaults to Info",
			level:     LogLevel("invalid"),
			shouldLog: map[string]bool{"DEBUG": false, "INFO": true, "WARN": true, "ERROR": true},
		},
	}

	funcs := map[string]func(string, ...any){
		"DEBUG": Debug,
		"INFO":  Info,
		"WARN":  Warn,
		"ERROR": Error,
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetupLogger(&buf, tc.level)

			for name, logFunc := range funcs {
				buf.Reset()
				logFunc("test message", "bug_id", 101)
				output := buf.String()

				if tc.shouldLog[name] {
					assert.Contains(t, output, "level="+name)
					assert.Contains(t, output, "bug_id=101")
				} else {
					assert.Empty(t, output, "%s should not be logged at %s", name, tc.level)
				}
			}
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	testCases := []struct {
		env      string
		expected LogLevel
	}{
		{"", LevelInfo},
		{"debug", LevelDebug},
		{" WARN ", LevelWarn},
		{"error", LevelError},
	}

	for _, tc := range testCases {
		t.Run(tc.env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tc.env)
			assert.Equal(t, tc.expected, LevelFromEnv())
		})
	}
}

func TestGetLogger(t *testing.T) {
	require.NotNil(t, GetLogger())
}

func TestMaskSensitive(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty string", input: "", expected: "<not set>"},
		{name: "Short string", input: "abc", expected: "<set>"},
		{name: "Exactly 4 characters", input: "abcd", expected: "<set>"},
		{name: "DSN", input: "postgres://redmine:secret@db/redmine", expected: "post...***"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MaskSensitive(tc.input))
		})
	}
}

func TestOpenRunLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	day := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)

	f, err := openRunLogIn(dir, "bzmigrate", day)
	require.NoError(t, err)
	_, err = f.WriteString("first run\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = openRunLogIn(dir, "bzmigrate", day)
	require.NoError(t, err)
	_, err = f.WriteString("second run\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(filepath.Join(dir, "bzmigrate-2024-03-09.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "run\n"))
}
