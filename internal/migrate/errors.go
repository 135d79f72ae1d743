package migrate

import (
	"errors"
	"fmt"
)

// ConfigError reports a setup problem that stops the whole run before any bug
// is processed: an unknown project, a missing marker field, no fallback user
// or an unusable destination catalog.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return "configuration error: " + e.Msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err, or anything it wraps, is a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// IncompleteIssueError is returned when migrating a bug failed after its
// Redmine issue had been created.
type IncompleteIssueError struct {
	BugID   int64
	IssueID int64
	Err     error
}

func (e *IncompleteIssueError) Error() string {
	return fmt.Sprintf("issue %d for bug %d left incomplete: %v", e.IssueID, e.BugID, e.Err)
}

func (e *IncompleteIssueError) Unwrap() error {
	return e.Err
}
