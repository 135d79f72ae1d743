package redmine

import (
	"context"
	"fmt"

	"github.com/danielolaszy/bzmigrate/pkg/models"
)

// Statuses returns all issue statuses by position.
func (s *Store) Statuses(ctx context.Context) ([]models.Status, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, is_closed, COALESCE(position, 0) FROM issue_statuses ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read issue statuses: %w", err)
	}
	defer rows.Close()

	var statuses []models.Status
	for rows.Next() {
		var st models.Status
		if err := rows.Scan(&st.ID, &st.Name, &st.IsClosed, &st.Position); err != nil {
			return nil, fmt.Errorf("failed to scan issue status: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// Priorities returns the active issue priorities by position.
func (s *Store) Priorities(ctx context.Context) ([]models.Priority, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, is_default, COALESCE(position, 0) FROM enumerations WHERE type = 'IssuePriority' AND active ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read issue priorities: %w", err)
	}
	defer rows.Close()

	var priorities []models.Priority
	for rows.Next() {
		var p models.Priority
		if err := rows.Scan(&p.ID, &p.Name, &p.IsDefault, &p.Position); err != nil {
			return nil, fmt.Errorf("failed to scan issue priority: %w", err)
		}
		priorities = append(priorities, p)
	}
	return priorities, rows.Err()
}

// Trackers returns all trackers by position.
func (s *Store) Trackers(ctx context.Context) ([]models.Tracker, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, COALESCE(default_status_id, 0) FROM trackers ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read trackers: %w", err)
	}
	defer rows.Close()

	var trackers []models.Tracker
	for rows.Next() {
		var t models.Tracker
		if err := rows.Scan(&t.ID, &t.Name, &t.DefaultStatusID); err != nil {
			return nil, fmt.Errorf("failed to scan tracker: %w", err)
		}
		trackers = append(trackers, t)
	}
	return trackers, rows.Err()
}
