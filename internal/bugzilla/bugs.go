package bugzilla

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danielolaszy/bzmigrate/pkg/models"
)

// FindUser loads a profile by id.
func (s *Store) FindUser(ctx context.Context, id int64) (models.SourceUser, bool, error) {
	var (
		u        models.SourceUser
		realName sql.NullString
		externID sql.NullString
	)
	err := s.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&u.ID, &u.LoginName, &realName, &externID)
	}, `SELECT userid, login_name, realname, extern_id FROM profiles WHERE userid = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SourceUser{}, false, nil
	}
	if err != nil {
		return models.SourceUser{}, false, fmt.Errorf("failed to read profile %d: %w", id, err)
	}
	u.RealName = realName.String
	u.ExternID = externID.String
	return u, true, nil
}

// FindBug loads a bug by id.
func (s *Store) FindBug(ctx context.Context, id int64) (models.SourceBug, bool, error) {
	var (
		b          models.SourceBug
		assignedTo sql.NullInt64
		createdAt  sql.NullTime
		xref       sql.NullString
	)
	query := fmt.Sprintf(`SELECT bug_id, product_id, short_desc, bug_status, priority, bug_severity,
		reporter, assigned_to, creation_ts, delta_ts, %s
		FROM bugs WHERE bug_id = ?`, s.xrefColumn())
	err := s.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&b.ID, &b.ProductID, &b.Title, &b.Status, &b.Priority, &b.Severity,
			&b.ReporterID, &assignedTo, &createdAt, &b.UpdatedAt, &xref)
	}, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SourceBug{}, false, nil
	}
	if err != nil {
		return models.SourceBug{}, false, fmt.Errorf("failed to read bug %d: %w", id, err)
	}
	b.AssigneeID = assignedTo.Int64
	b.CreatedAt = createdAt.Time
	if !createdAt.Valid {
		b.CreatedAt = b.UpdatedAt
	}
	b.CrossReference = xref.String
	return b, true, nil
}

// FindComments returns a bug's comments, oldest first.
func (s *Store) FindComments(ctx context.Context, bugID int64) ([]models.SourceComment, error) {
	rows, err := s.queryContext(ctx, `SELECT comment_id, bug_id, who, bug_when, thetext
		FROM longdescs WHERE bug_id = ? ORDER BY bug_when, comment_id`, bugID)
	if err != nil {
		return nil, fmt.Errorf("failed to read comments of bug %d: %w", bugID, err)
	}
	defer rows.Close()

	var comments []models.SourceComment
	for rows.Next() {
		var (
			c    models.SourceComment
			text sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.BugID, &c.AuthorID, &c.When, &text); err != nil {
			return nil, fmt.Errorf("failed to scan comment of bug %d: %w", bugID, err)
		}
		c.Text = text.String
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read comments of bug %d: %w", bugID, err)
	}
	return comments, nil
}

// FindAttachments returns a bug's attachment metadata in attachment id order.
func (s *Store) FindAttachments(ctx context.Context, bugID int64) ([]models.SourceAttachment, error) {
	rows, err := s.queryContext(ctx, `SELECT attach_id, bug_id, submitter_id, description, filename, mimetype, creation_ts
		FROM attachments WHERE bug_id = ? ORDER BY attach_id`, bugID)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachments of bug %d: %w", bugID, err)
	}
	defer rows.Close()

	var attachments []models.SourceAttachment
	for rows.Next() {
		var a models.SourceAttachment
		if err := rows.Scan(&a.ID, &a.BugID, &a.SubmitterID, &a.Description, &a.Filename, &a.MimeType, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment of bug %d: %w", bugID, err)
		}
		attachments = append(attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attachments of bug %d: %w", bugID, err)
	}
	return attachments, nil
}

// FindWatchers returns a bug's CC list.
func (s *Store) FindWatchers(ctx context.Context, bugID int64) ([]models.SourceWatcher, error) {
	rows, err := s.queryContext(ctx, `SELECT bug_id, who FROM cc WHERE bug_id = ?`, bugID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cc list of bug %d: %w", bugID, err)
	}
	defer rows.Close()

	var watchers []models.SourceWatcher
	for rows.Next() {
		var w models.SourceWatcher
		if err := rows.Scan(&w.BugID, &w.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan cc entry of bug %d: %w", bugID, err)
		}
		watchers = append(watchers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cc list of bug %d: %w", bugID, err)
	}
	return watchers, nil
}

// AppendComment adds a comment to a bug.
func (s *Store) AppendComment(ctx context.Context, c models.SourceComment) error {
	_, err := s.insertContext(ctx, `INSERT INTO longdescs (bug_id, who, bug_when, thetext) VALUES (?, ?, ?, ?)`,
		c.BugID, c.AuthorID, c.When, c.Text)
	if err != nil {
		return fmt.Errorf("failed to add comment to bug %d: %w", c.BugID, err)
	}
	return nil
}

// SetCrossReference stores the Redmine issue address on a bug.
func (s *Store) SetCrossReference(ctx context.Context, bugID int64, url string) error {
	query := fmt.Sprintf(`UPDATE bugs SET %s = ? WHERE bug_id = ?`, s.xrefColumn())
	result, err := s.execContext(ctx, query, url, bugID)
	if err != nil {
		return fmt.Errorf("failed to set %s on bug %d: %w", s.xrefField, bugID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set %s on bug %d: %w", s.xrefField, bugID, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to set %s on bug %d: bug not found", s.xrefField, bugID)
	}
	return nil
}

// xrefColumn is safe to interpolate: New validated the name.
func (s *Store) xrefColumn() string {
	return "`" + s.xrefField + "`"
}
