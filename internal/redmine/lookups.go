package redmine

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielolaszy/bzmigrate/pkg/models"
	"github.com/jackc/pgx/v5"
)

const userColumns = `u.id, u.login, u.firstname, u.lastname, COALESCE(e.address, '')`

const defaultEmailJoin = `LEFT JOIN email_addresses e ON e.user_id = u.id AND e.is_default`

// FindProject looks a project up by its identifier.
func (s *Store) FindProject(ctx context.Context, identifier string) (models.Project, bool, error) {
	var p models.Project
	err := s.db.QueryRow(ctx,
		`SELECT id, identifier, name FROM projects WHERE identifier = $1`,
		identifier).Scan(&p.ID, &p.Identifier, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Project{}, false, nil
	}
	if err != nil {
		return models.Project{}, false, fmt.Errorf("failed to find project %s: %w", identifier, err)
	}
	return p, true, nil
}

// FindUserByEmail matches any of a user's addresses, case-insensitively.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.DestinationUser, bool, error) {
	return s.findUser(ctx, email, `SELECT `+userColumns+`
		FROM users u
		JOIN email_addresses e ON e.user_id = u.id
		WHERE u.type = 'User' AND lower(e.address) = lower($1)
		ORDER BY u.status, u.id
		LIMIT 1`)
}

// FindUserByLogin matches a login, case-insensitively.
func (s *Store) FindUserByLogin(ctx context.Context, login string) (models.DestinationUser, bool, error) {
	return s.findUser(ctx, login, `SELECT `+userColumns+`
		FROM users u
		`+defaultEmailJoin+`
		WHERE u.type = 'User' AND lower(u.login) = lower($1)
		ORDER BY u.status, u.id
		LIMIT 1`)
}

func (s *Store) findUser(ctx context.Context, key, query string) (models.DestinationUser, bool, error) {
	var u models.DestinationUser
	err := s.db.QueryRow(ctx, query, key).Scan(&u.ID, &u.Login, &u.FirstName, &u.LastName, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DestinationUser{}, false, nil
	}
	if err != nil {
		return models.DestinationUser{}, false, fmt.Errorf("failed to find user %s: %w", key, err)
	}
	return u, true, nil
}

// ProjectUsersByRole lists active (status 1) project members holding the named role, in
// membership order.
func (s *Store) ProjectUsersByRole(ctx context.Context, projectID int64, role string) ([]models.DestinationUser, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT ON (m.id) `+userColumns+`
		FROM members m
		JOIN member_roles mr ON mr.member_id = m.id
		JOIN roles r ON r.id = mr.role_id
		JOIN users u ON u.id = m.user_id
		`+defaultEmailJoin+`
		WHERE m.project_id = $1 AND r.name = $2 AND u.status = 1
		ORDER BY m.id`, projectID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s members of project %d: %w", role, projectID, err)
	}
	return collectUsers(rows)
}

// ProjectPrincipals lists active project members, users and groups, in
// membership order.
func (s *Store) ProjectPrincipals(ctx context.Context, projectID int64) ([]models.DestinationUser, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+`
		FROM members m
		JOIN users u ON u.id = m.user_id
		`+defaultEmailJoin+`
		WHERE m.project_id = $1 AND u.status = 1
		ORDER BY m.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of project %d: %w", projectID, err)
	}
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]models.DestinationUser, error) {
	defer rows.Close()

	var users []models.DestinationUser
	for rows.Next() {
		var u models.DestinationUser
		if err := rows.Scan(&u.ID, &u.Login, &u.FirstName, &u.LastName, &u.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return users, nil
}

// FindCustomField looks an issue custom field up by name.
func (s *Store) FindCustomField(ctx context.Context, name string) (models.CustomField, bool, error) {
	var f models.CustomField
	err := s.db.QueryRow(ctx,
		`SELECT id, name, field_format FROM custom_fields WHERE type = 'IssueCustomField' AND name = $1`,
		name).Scan(&f.ID, &f.Name, &f.FieldFormat)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CustomField{}, false, nil
	}
	if err != nil {
		return models.CustomField{}, false, fmt.Errorf("failed to find custom field %s: %w", name, err)
	}
	return f, true, nil
}

// HasCustomValue reports whether any issue has value in the given field.
func (s *Store) HasCustomValue(ctx context.Context, fieldID int64, value string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM custom_values WHERE customized_type = 'Issue' AND custom_field_id = $1 AND value = $2)`,
		fieldID, value).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query custom field %d: %w", fieldID, err)
	}
	return exists, nil
}
