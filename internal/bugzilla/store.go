// Package bugzilla reads bugs from, and annotates bugs in, a Bugzilla MySQL
// database.
package bugzilla

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/danielolaszy/bzmigrate/internal/logging"
	"github.com/go-sql-driver/mysql"
)

// DefaultXRefField is the bugs column that receives the Redmine issue address.
const DefaultXRefField = "cf_redmine_issue"

const retryMaxElapsed = 30 * time.Second

var xrefFieldPattern = regexp.MustCompile(`^cf_[a-z0-9_]+$`)

// Config holds the connection settings for a Bugzilla database.
type Config struct {
	// DSN is a go-sql-driver/mysql data source name.
	DSN string

	// XRefField is the custom field column updated after migration.
	XRefField string
}

// Store is the Bugzilla side of a migration.
type Store struct {
	db        *sql.DB
	xrefField string

	// newBackOff returns a fresh policy for each retried call.
	newBackOff func() backoff.BackOff
}

// Open connects to Bugzilla and waits for the server to answer.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create bugzilla connector: %w", err)
	}

	store, err := New(sql.OpenDB(connector), cfg.XRefField)
	if err != nil {
		return nil, err
	}

	if err := store.withRetry(ctx, isRetryableError, func() error { return store.db.PingContext(ctx) }); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to connect to bugzilla at %s: %w", dsn.Addr, err)
	}

	logging.Info("connected to bugzilla", "addr", dsn.Addr, "database", dsn.DBName, "user", dsn.User)
	return store, nil
}

// parseDSN keeps the DSN's loc, which the driver defaults to UTC.
func parseDSN(raw string) (*mysql.Config, error) {
	dsn, err := mysql.ParseDSN(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bugzilla DSN: %w", err)
	}
	dsn.ParseTime = true
	// UPDATE must report matched rows, not changed rows
	dsn.ClientFoundRows = true
	return dsn, nil
}

// New wraps an open database handle.
func New(db *sql.DB, xrefField string) (*Store, error) {
	if xrefField == "" {
		xrefField = DefaultXRefField
	}
	if !xrefFieldPattern.MatchString(xrefField) {
		return nil, fmt.Errorf("invalid bugzilla cross reference field %q: must match %s", xrefField, xrefFieldPattern)
	}
	return &Store{db: db, xrefField: xrefField, newBackOff: newRetryBackOff}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func newRetryBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return bo
}

// isRetryableError reports whether err is a transient connection problem.
// Some of these can arrive after the server ran the statement, so only
// idempotent statements may be retried on them.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, transient := range []string{
		"bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"lost connection", // 2013
		"gone away",       // 2006
		"i/o timeout",
	} {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}

// isUnsentError reports whether err guarantees the statement never reached
// the server. database/sql only surfaces driver.ErrBadConn in that case.
func isUnsentError(err error) bool {
	return errors.Is(err, driver.ErrBadConn)
}

func (s *Store) withRetry(ctx context.Context, retryable func(error) bool, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && retryable(err) {
			logging.Debug("retrying bugzilla operation", "error", err)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(s.newBackOff(), ctx))
}

// execContext runs an idempotent statement.
func (s *Store) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.exec(ctx, isRetryableError, query, args...)
}

// insertContext runs a statement that must not be applied twice.
func (s *Store) insertContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.exec(ctx, isUnsentError, query, args...)
}

func (s *Store) exec(ctx context.Context, retryable func(error) bool, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := s.withRetry(ctx, retryable, func() error {
		var execErr error
		result, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return result, err
}

func (s *Store) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := s.withRetry(ctx, isRetryableError, func() error {
		var queryErr error
		rows, queryErr = s.db.QueryContext(ctx, query, args...)
		return queryErr
	})
	return rows, err
}

// queryRowContext runs a single-row query. scan receives the row and returns
// its Scan error, so sql.ErrNoRows reaches the caller unchanged.
func (s *Store) queryRowContext(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	return s.withRetry(ctx, isRetryableError, func() error {
		return scan(s.db.QueryRowContext(ctx, query, args...))
	})
}
