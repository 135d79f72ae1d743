package redmine

import (
	"context"
	"fmt"

	"github.com/danielolaszy/bzmigrate/pkg/models"
	"github.com/jackc/pgx/v5"
)

// CreateIssue inserts a root issue and sets issue.ID. A non-zero issue.ID is
// used as the key and the id sequence is moved past it.
func (s *Store) CreateIssue(ctx context.Context, issue *models.DestinationIssue) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		args := []any{
			issue.ProjectID, issue.TrackerID, issue.StatusID, issue.PriorityID,
			issue.AuthorID, nullID(issue.AssigneeID), issue.Subject, issue.Description,
			issue.StartDate, issue.CreatedAt, issue.UpdatedAt,
		}

		var id int64
		if issue.ID == 0 {
			err := tx.QueryRow(ctx, `INSERT INTO issues (project_id, tracker_id, status_id, priority_id,
				author_id, assigned_to_id, subject, description, start_date, created_on, updated_on,
				lft, rgt, lock_version, done_ratio, is_private)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, 2, 0, 0, false)
				RETURNING id`, args...).Scan(&id)
			if err != nil {
				return err
			}
		} else {
			err := tx.QueryRow(ctx, `INSERT INTO issues (id, project_id, tracker_id, status_id, priority_id,
				author_id, assigned_to_id, subject, description, start_date, created_on, updated_on,
				lft, rgt, lock_version, done_ratio, is_private)
				VALUES ($12, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, 2, 0, 0, false)
				RETURNING id`, append(args, issue.ID)...).Scan(&id)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`SELECT setval('issues_id_seq', GREATEST((SELECT MAX(id) FROM issues), $1))`, id); err != nil {
				return fmt.Errorf("failed to advance issue id sequence: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE issues SET root_id = $1 WHERE id = $1`, id); err != nil {
			return err
		}
		issue.ID = id
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create issue %q: %w", issue.Subject, err)
	}
	return nil
}

// CreateJournal adds a note to an issue and sets journal.ID.
func (s *Store) CreateJournal(ctx context.Context, journal *models.DestinationJournal) error {
	err := s.db.QueryRow(ctx, `INSERT INTO journals (journalized_id, journalized_type, user_id, notes, created_on, private_notes)
		VALUES ($1, 'Issue', $2, $3, $4, false)
		RETURNING id`,
		journal.IssueID, journal.AuthorID, journal.Notes, journal.CreatedAt).Scan(&journal.ID)
	if err != nil {
		return fmt.Errorf("failed to create journal on issue %d: %w", journal.IssueID, err)
	}
	return nil
}

// SetCustomValue sets an issue's value for a custom field.
func (s *Store) SetCustomValue(ctx context.Context, fieldID, issueID int64, value string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE custom_values SET value = $3
			WHERE customized_type = 'Issue' AND custom_field_id = $1 AND customized_id = $2`,
			fieldID, issueID, value)
		if err != nil {
			return fmt.Errorf("failed to update custom field %d on issue %d: %w", fieldID, issueID, err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `INSERT INTO custom_values (customized_type, custom_field_id, customized_id, value)
			VALUES ('Issue', $1, $2, $3)`,
			fieldID, issueID, value); err != nil {
			return fmt.Errorf("failed to insert custom field %d on issue %d: %w", fieldID, issueID, err)
		}
		return nil
	})
}

// AddWatcher subscribes a user to an issue. Existing subscriptions are kept.
func (s *Store) AddWatcher(ctx context.Context, issueID, userID int64) error {
	_, err := s.db.Exec(ctx, `INSERT INTO watchers (watchable_type, watchable_id, user_id)
		SELECT 'Issue', $1::int, $2::int
		WHERE NOT EXISTS (SELECT 1 FROM watchers WHERE watchable_type = 'Issue' AND watchable_id = $1::int AND user_id = $2::int)`,
		issueID, userID)
	if err != nil {
		return fmt.Errorf("failed to add watcher %d to issue %d: %w", userID, issueID, err)
	}
	return nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
