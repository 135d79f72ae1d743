package migrate

import "errors"

// SkipReason explains why a requested bug was not migrated.
type SkipReason string

const (
	// SkipUnknownRecord means the bug id does not exist in Bugzilla.
	SkipUnknownRecord SkipReason = "unknown-record"
	// SkipAlreadyMigrated means a Redmine issue already carries the bug's marker.
	SkipAlreadyMigrated SkipReason = "already-migrated"
	// SkipFailed means a store operation failed while migrating the bug.
	SkipFailed SkipReason = "failed"
	// SkipIncomplete means an earlier run left a half-built issue for the bug.
	SkipIncomplete SkipReason = "incomplete"
)

// Skip is one requested bug that was not migrated.
type Skip struct {
	BugID  int64
	Reason SkipReason
	Err    error

	// IssueID is the Redmine issue left behind by a failure after the issue
	// was created, 0 otherwise
	IssueID int64
}

// Result aggregates the outcome of one Migrate call.
type Result struct {
	Requested int
	Migrated  []int64
	Skipped   []Skip
}

// Complete reports whether every requested bug was migrated.
func (r *Result) Complete() bool {
	return len(r.Skipped) == 0 && len(r.Migrated) == r.Requested
}

// SkippedIDs returns the ids of the skipped bugs in processing order.
func (r *Result) SkippedIDs() []int64 {
	ids := make([]int64, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		ids = append(ids, s.BugID)
	}
	return ids
}

func (r *Result) skip(bugID int64, reason SkipReason, err error) {
	s := Skip{BugID: bugID, Reason: reason, Err: err}
	var incomplete *IncompleteIssueError
	if errors.As(err, &incomplete) {
		s.IssueID = incomplete.IssueID
	}
	r.Skipped = append(r.Skipped, s)
}
