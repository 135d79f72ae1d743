// Package migrate copies Bugzilla bugs into a Redmine project.
package migrate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danielolaszy/bzmigrate/internal/identity"
	"github.com/danielolaszy/bzmigrate/internal/logging"
	"github.com/danielolaszy/bzmigrate/internal/mapping"
	"github.com/danielolaszy/bzmigrate/pkg/models"
)

// Source is the Bugzilla side of a migration.
type Source interface {
	identity.SourceUsers

	FindBug(ctx context.Context, id int64) (models.SourceBug, bool, error)
	FindComments(ctx context.Context, bugID int64) ([]models.SourceComment, error)
	FindAttachments(ctx context.Context, bugID int64) ([]models.SourceAttachment, error)
	FindWatchers(ctx context.Context, bugID int64) ([]models.SourceWatcher, error)

	AppendComment(ctx context.Context, comment models.SourceComment) error
	SetCrossReference(ctx context.Context, bugID int64, url string) error
}

// Destination is the Redmine side of a migration.
type Destination interface {
	identity.DestinationUsers
	MarkerStore

	FindProject(ctx context.Context, identifier string) (models.Project, bool, error)
	ProjectUsersByRole(ctx context.Context, projectID int64, role string) ([]models.DestinationUser, error)
	ProjectPrincipals(ctx context.Context, projectID int64) ([]models.DestinationUser, error)
	FindCustomField(ctx context.Context, name string) (models.CustomField, bool, error)

	Statuses(ctx context.Context) ([]models.Status, error)
	Priorities(ctx context.Context) ([]models.Priority, error)
	Trackers(ctx context.Context) ([]models.Tracker, error)

	CreateIssue(ctx context.Context, issue *models.DestinationIssue) error
	CreateJournal(ctx context.Context, journal *models.DestinationJournal) error
	AddWatcher(ctx context.Context, issueID, userID int64) error
}

// Options configure an Engine.
type Options struct {
	// BugzillaURL and RedmineURL are the base addresses used in links.
	BugzillaURL string
	RedmineURL  string

	// MarkerField names the Redmine issue custom field holding the bug id.
	MarkerField string

	// ManagerRole names the project role whose first member is the fallback user.
	ManagerRole string

	// PlaceholderDomain completes Bugzilla logins that are not e-mail addresses.
	PlaceholderDomain string

	// Tables is the mapping configuration. The zero value means mapping.DefaultTables.
	Tables mapping.Tables

	// FailFast aborts the batch on the first store failure instead of
	// recording the bug as skipped and moving on.
	FailFast bool

	// Clock stamps the synthetic journal and the Bugzilla write-back comment.
	Clock func() time.Time
}

// Engine migrates bugs one at a time.
type Engine struct {
	source Source
	dest   Destination
	opts   Options
}

// NewEngine creates an Engine.
func NewEngine(source Source, dest Destination, opts Options) *Engine {
	if opts.Tables.Statuses == nil {
		opts.Tables = mapping.DefaultTables()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{source: source, dest: dest, opts: opts}
}

// run holds the lookups resolved once per Migrate call.
type run struct {
	*Engine

	project  models.Project
	fallback models.DestinationUser
	guard    *Guard
	mapper   *mapping.Mapper
	resolver *identity.Resolver
}

// Migrate copies the given bugs into the project, in order. Setup problems
// return a *ConfigError before any bug is touched. Per-bug failures are
// recorded in the Result, unless FailFast is set, in which case the first one
// is returned together with the partial Result.
func (e *Engine) Migrate(ctx context.Context, projectIdentifier string, bugIDs []int64) (*Result, error) {
	result := &Result{Requested: len(bugIDs)}

	r, err := e.setup(ctx, projectIdentifier)
	if err != nil {
		return result, err
	}

	for _, bugID := range bugIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		reason, err := r.migrateBug(ctx, bugID)
		switch {
		case err != nil:
			logging.Error("failed to migrate bug", "bug_id", bugID, "error", err)
			result.skip(bugID, SkipFailed, err)
			if e.opts.FailFast {
				return result, fmt.Errorf("failed to migrate bug %d: %w", bugID, err)
			}
		case reason != "":
			logging.Info("bug skipped", "bug_id", bugID, "reason", reason)
			result.skip(bugID, reason, nil)
		default:
			result.Migrated = append(result.Migrated, bugID)
		}
	}

	return result, nil
}

func (e *Engine) setup(ctx context.Context, projectIdentifier string) (*run, error) {
	project, found, err := e.dest.FindProject(ctx, projectIdentifier)
	if err != nil {
		return nil, fmt.Errorf("failed to look up project %s: %w", projectIdentifier, err)
	}
	if !found {
		return nil, configErrorf("unknown Redmine project: %s", projectIdentifier)
	}

	fallback, err := e.fallbackUser(ctx, project)
	if err != nil {
		return nil, err
	}

	field, found, err := e.dest.FindCustomField(ctx, e.opts.MarkerField)
	if err != nil {
		return nil, fmt.Errorf("failed to look up custom field %s: %w", e.opts.MarkerField, err)
	}
	if !found {
		return nil, configErrorf("issue custom field %q not found", e.opts.MarkerField)
	}

	mapper, err := e.newMapper(ctx)
	if err != nil {
		return nil, err
	}

	logging.Info("migration setup complete",
		"project", project.Identifier,
		"project_id", project.ID,
		"fallback_user", fallback.Login,
		"marker_field_id", field.ID)

	return &run{
		Engine:   e,
		project:  project,
		fallback: fallback,
		guard:    NewGuard(e.dest, field),
		mapper:   mapper,
		resolver: identity.NewResolver(e.source, e.dest, e.opts.PlaceholderDomain),
	}, nil
}

// fallbackUser prefers the first member holding the manager role, then the
// first project member of any kind.
func (e *Engine) fallbackUser(ctx context.Context, project models.Project) (models.DestinationUser, error) {
	managers, err := e.dest.ProjectUsersByRole(ctx, project.ID, e.opts.ManagerRole)
	if err != nil {
		return models.DestinationUser{}, fmt.Errorf("failed to list %s members of project %s: %w", e.opts.ManagerRole, project.Identifier, err)
	}
	if len(managers) > 0 {
		return managers[0], nil
	}

	principals, err := e.dest.ProjectPrincipals(ctx, project.ID)
	if err != nil {
		return models.DestinationUser{}, fmt.Errorf("failed to list members of project %s: %w", project.Identifier, err)
	}
	if len(principals) == 0 {
		return models.DestinationUser{}, configErrorf("project %s has no members to act as fallback user", project.Identifier)
	}
	return principals[0], nil
}

func (e *Engine) newMapper(ctx context.Context) (*mapping.Mapper, error) {
	var catalog mapping.Catalog
	var err error

	if catalog.Statuses, err = e.dest.Statuses(ctx); err != nil {
		return nil, fmt.Errorf("failed to read issue statuses: %w", err)
	}
	if catalog.Priorities, err = e.dest.Priorities(ctx); err != nil {
		return nil, fmt.Errorf("failed to read issue priorities: %w", err)
	}
	if catalog.Trackers, err = e.dest.Trackers(ctx); err != nil {
		return nil, fmt.Errorf("failed to read trackers: %w", err)
	}

	mapper, err := mapping.NewMapper(e.opts.Tables, catalog)
	if err != nil {
		return nil, &ConfigError{Msg: "cannot map onto Redmine catalog", Err: err}
	}
	return mapper, nil
}

// migrateBug returns a non-empty reason when the bug is skipped.
func (r *run) migrateBug(ctx context.Context, bugID int64) (SkipReason, error) {
	bug, found, err := r.source.FindBug(ctx, bugID)
	if err != nil {
		return "", fmt.Errorf("failed to read bug: %w", err)
	}
	if !found {
		return SkipUnknownRecord, nil
	}

	migrated, err := r.guard.AlreadyMigrated(ctx, bug.ID)
	if err != nil {
		return "", err
	}
	if migrated {
		return SkipAlreadyMigrated, nil
	}
	incomplete, err := r.guard.Incomplete(ctx, bug.ID)
	if err != nil {
		return "", err
	}
	if incomplete {
		return SkipIncomplete, nil
	}

	// All Bugzilla reads happen before the first Redmine write.
	comments, err := r.source.FindComments(ctx, bug.ID)
	if err != nil {
		return "", fmt.Errorf("failed to read comments: %w", err)
	}
	sortComments(comments)
	attachments, err := r.source.FindAttachments(ctx, bug.ID)
	if err != nil {
		return "", fmt.Errorf("failed to read attachments: %w", err)
	}
	watchers, err := r.source.FindWatchers(ctx, bug.ID)
	if err != nil {
		return "", fmt.Errorf("failed to read cc list: %w", err)
	}

	author, err := r.resolveOr(ctx, bug.ReporterID, r.fallback)
	if err != nil {
		return "", err
	}
	assignee := r.fallback
	if bug.HasAssignee() {
		if assignee, err = r.resolveOr(ctx, bug.AssigneeID, author); err != nil {
			return "", err
		}
	}

	issue := &models.DestinationIssue{
		ProjectID:   r.project.ID,
		TrackerID:   r.mapper.Tracker(bug.Severity).ID,
		StatusID:    r.mapper.Status(bug.Status).ID,
		PriorityID:  r.mapper.Priority(bug.Priority).ID,
		AuthorID:    author.ID,
		AssigneeID:  assignee.ID,
		Subject:     bug.Title,
		Description: description(bug, comments),
		StartDate:   bug.CreatedAt,
		CreatedAt:   bug.CreatedAt,
		UpdatedAt:   bug.UpdatedAt,
	}
	if err := r.dest.CreateIssue(ctx, issue); err != nil {
		return "", fmt.Errorf("failed to create issue: %w", err)
	}
	logging.Info("issue created", "bug_id", bug.ID, "issue_id", issue.ID, "author", author.Login)

	if err := r.fill(ctx, bug, issue.ID, author, comments, attachments); err != nil {
		return "", r.abandon(ctx, bug.ID, issue.ID, err)
	}

	// Watchers go last so Redmine does not notify anyone about a half-built issue.
	r.addWatchers(ctx, issue.ID, watchers)

	logging.Info("bug migrated", "bug_id", bug.ID, "issue_id", issue.ID, "url", IssueURL(r.opts.RedmineURL, issue.ID))
	return "", nil
}

// fill adds the journals, writes back to Bugzilla and sets the marker on a
// freshly created issue.
func (r *run) fill(ctx context.Context, bug models.SourceBug, issueID int64, author models.DestinationUser,
	comments []models.SourceComment, attachments []models.SourceAttachment) error {
	if len(comments) > 1 {
		for _, c := range comments[1:] {
			commenter, err := r.resolveOr(ctx, c.AuthorID, author)
			if err != nil {
				return err
			}
			if err := r.addJournal(ctx, issueID, commenter.ID, c.When, c.Text); err != nil {
				return err
			}
		}
	}

	if err := r.addJournal(ctx, issueID, r.fallback.ID, r.opts.Clock(), originNote(r.opts.BugzillaURL, bug.ID)); err != nil {
		return err
	}
	logging.Debug("migrated comments", "bug_id", bug.ID, "issue_id", issueID, "count", len(comments))

	for _, att := range attachments {
		submitter, err := r.resolveOr(ctx, att.SubmitterID, author)
		if err != nil {
			return err
		}
		if err := r.addJournal(ctx, issueID, submitter.ID, att.CreatedAt, attachmentNote(r.opts.BugzillaURL, att)); err != nil {
			return err
		}
	}
	logging.Debug("migrated attachments as links", "bug_id", bug.ID, "issue_id", issueID, "count", len(attachments))

	r.writeBack(ctx, bug, issueID)

	return r.guard.Mark(ctx, issueID, bug.ID)
}

// abandon tags a half-built issue so later runs skip the bug instead of
// creating a second issue for it.
func (r *run) abandon(ctx context.Context, bugID, issueID int64, cause error) error {
	logging.Warn("issue left incomplete", "bug_id", bugID, "issue_id", issueID,
		"url", IssueURL(r.opts.RedmineURL, issueID), "error", cause)
	// Tag even when the run is being cancelled.
	if err := r.guard.MarkIncomplete(context.WithoutCancel(ctx), issueID, bugID); err != nil {
		logging.Error("can't tag incomplete issue, a rerun will create another one",
			"bug_id", bugID, "issue_id", issueID, "error", err)
	}
	return &IncompleteIssueError{BugID: bugID, IssueID: issueID, Err: cause}
}

func (r *run) resolveOr(ctx context.Context, sourceUserID int64, fallback models.DestinationUser) (models.DestinationUser, error) {
	user, found, err := r.resolver.Resolve(ctx, sourceUserID)
	if err != nil {
		return models.DestinationUser{}, err
	}
	if !found {
		return fallback, nil
	}
	return user, nil
}

func (r *run) addJournal(ctx context.Context, issueID, authorID int64, at time.Time, notes string) error {
	journal := &models.DestinationJournal{
		IssueID:   issueID,
		AuthorID:  authorID,
		CreatedAt: at,
		Notes:     notes,
	}
	if err := r.dest.CreateJournal(ctx, journal); err != nil {
		return fmt.Errorf("failed to create journal on issue %d: %w", issueID, err)
	}
	return nil
}

// writeBack annotates the Bugzilla bug. Failures are logged only: the Redmine
// issue is the outcome that counts.
func (r *run) writeBack(ctx context.Context, bug models.SourceBug, issueID int64) {
	url := IssueURL(r.opts.RedmineURL, issueID)

	comment := models.SourceComment{
		BugID:    bug.ID,
		AuthorID: bug.ReporterID,
		When:     r.opts.Clock(),
		Text:     movedNote(url),
	}
	if err := r.source.AppendComment(ctx, comment); err != nil {
		logging.Warn("can't add comment to Bugzilla", "bug_id", bug.ID, "error", err)
	}
	if err := r.source.SetCrossReference(ctx, bug.ID, url); err != nil {
		logging.Warn("can't set Bugzilla cross reference", "bug_id", bug.ID, "url", url, "error", err)
	}
}

func (r *run) addWatchers(ctx context.Context, issueID int64, watchers []models.SourceWatcher) {
	added := make(map[int64]bool, len(watchers))
	for _, w := range watchers {
		user, found, err := r.resolver.Resolve(ctx, w.UserID)
		if err != nil {
			logging.Warn("can't resolve watcher", "issue_id", issueID, "source_user_id", w.UserID, "error", err)
			continue
		}
		if !found {
			logging.Info("watcher not found in Redmine", "issue_id", issueID, "source_user_id", w.UserID)
			continue
		}
		if added[user.ID] {
			continue
		}
		if err := r.dest.AddWatcher(ctx, issueID, user.ID); err != nil {
			logging.Warn("can't add watcher", "issue_id", issueID, "user", user.Login, "error", err)
			continue
		}
		added[user.ID] = true
		logging.Debug("added watcher", "issue_id", issueID, "user", user.Login, "email", user.Email)
	}
}

// sortComments orders comments by time, breaking ties by comment id.
func sortComments(comments []models.SourceComment) {
	sort.SliceStable(comments, func(i, j int) bool {
		if !comments[i].When.Equal(comments[j].When) {
			return comments[i].When.Before(comments[j].When)
		}
		return comments[i].ID < comments[j].ID
	})
}

// description is the text of the earliest comment, or the title when there
// is no such text.
func description(bug models.SourceBug, sorted []models.SourceComment) string {
	if len(sorted) == 0 || strings.TrimSpace(sorted[0].Text) == "" {
		return bug.Title
	}
	return sorted[0].Text
}
