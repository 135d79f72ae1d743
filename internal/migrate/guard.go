package migrate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/danielolaszy/bzmigrate/pkg/models"
)

// MarkerStore reads and writes migration marker values on Redmine issues.
type MarkerStore interface {
	HasCustomValue(ctx context.Context, fieldID int64, value string) (bool, error)
	SetCustomValue(ctx context.Context, fieldID, issueID int64, value string) error
}

// Guard decides whether a bug was already migrated by looking for its id in
// the marker custom field.
type Guard struct {
	store MarkerStore
	field models.CustomField
}

// NewGuard creates a Guard for the given marker field.
func NewGuard(store MarkerStore, field models.CustomField) *Guard {
	return &Guard{store: store, field: field}
}

// Field returns the marker custom field.
func (g *Guard) Field() models.CustomField {
	return g.field
}

// AlreadyMigrated reports whether any issue carries bugID as its marker value.
func (g *Guard) AlreadyMigrated(ctx context.Context, bugID int64) (bool, error) {
	found, err := g.store.HasCustomValue(ctx, g.field.ID, markerValue(bugID))
	if err != nil {
		return false, fmt.Errorf("failed to check marker for bug %d: %w", bugID, err)
	}
	return found, nil
}

// Mark records bugID as the marker value of issueID.
func (g *Guard) Mark(ctx context.Context, issueID, bugID int64) error {
	if err := g.store.SetCustomValue(ctx, g.field.ID, issueID, markerValue(bugID)); err != nil {
		return fmt.Errorf("failed to set marker on issue %d: %w", issueID, err)
	}
	return nil
}

// Incomplete reports whether an issue was left half-built for bugID by an
// earlier run.
func (g *Guard) Incomplete(ctx context.Context, bugID int64) (bool, error) {
	found, err := g.store.HasCustomValue(ctx, g.field.ID, incompleteValue(bugID))
	if err != nil {
		return false, fmt.Errorf("failed to check incomplete marker for bug %d: %w", bugID, err)
	}
	return found, nil
}

// MarkIncomplete tags issueID as a half-built copy of bugID. Such a bug is
// skipped until an operator removes the issue or completes it and sets the
// regular marker.
func (g *Guard) MarkIncomplete(ctx context.Context, issueID, bugID int64) error {
	if err := g.store.SetCustomValue(ctx, g.field.ID, issueID, incompleteValue(bugID)); err != nil {
		return fmt.Errorf("failed to set incomplete marker on issue %d: %w", issueID, err)
	}
	return nil
}

func markerValue(bugID int64) string {
	return strconv.FormatInt(bugID, 10)
}

func incompleteValue(bugID int64) string {
	return markerValue(bugID) + "-incomplete"
}
