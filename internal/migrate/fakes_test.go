package migrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danielolaszy/bzmigrate/pkg/models"
)

type fakeSource struct {
	users       map[int64]models.SourceUser
	bugs        map[int64]models.SourceBug
	comments    map[int64][]models.SourceComment
	attachments map[int64][]models.SourceAttachment
	watchers    map[int64][]models.SourceWatcher

	appended []models.SourceComment
	xrefs    map[int64]string

	FindBugErr       error
	AppendCommentErr error
	SetCrossRefErr   error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		users:       make(map[int64]models.SourceUser),
		bugs:        make(map[int64]models.SourceBug),
		comments:    make(map[int64][]models.SourceComment),
		attachments: make(map[int64][]models.SourceAttachment),
		watchers:    make(map[int64][]models.SourceWatcher),
		xrefs:       make(map[int64]string),
	}
}

func (s *fakeSource) FindUser(_ context.Context, id int64) (models.SourceUser, bool, error) {
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *fakeSource) FindBug(_ context.Context, id int64) (models.SourceBug, bool, error) {
	if s.FindBugErr != nil {
		return models.SourceBug{}, false, s.FindBugErr
	}
	b, ok := s.bugs[id]
	return b, ok, nil
}

func (s *fakeSource) FindComments(_ context.Context, bugID int64) ([]models.SourceComment, error) {
	return append([]models.SourceComment(nil), s.comments[bugID]...), nil
}

func (s *fakeSource) FindAttachments(_ context.Context, bugID int64) ([]models.SourceAttachment, error) {
	return s.attachments[bugID], nil
}

func (s *fakeSource) FindWatchers(_ context.Context, bugID int64) ([]models.SourceWatcher, error) {
	return s.watchers[bugID], nil
}

func (s *fakeSource) AppendComment(_ context.Context, c models.SourceComment) error {
	if s.AppendCommentErr != nil {
		return s.AppendCommentErr
	}
	s.appended = append(s.appended, c)
	return nil
}

func (s *fakeSource) SetCrossReference(_ context.Context, bugID int64, url string) error {
	if s.SetCrossRefErr != nil {
		return s.SetCrossRefErr
	}
	s.xrefs[bugID] = url
	return nil
}

// fakeDestination is an in-memory Redmine that records every write in order.
type fakeDestination struct {
	projects     map[string]models.Project
	users        []models.DestinationUser
	managers     map[int64][]models.DestinationUser
	principals   map[int64][]models.DestinationUser
	customFields map[string]models.CustomField

	statuses   []models.Status
	priorities []models.Priority
	trackers   []models.Tracker

	nextIssueID  int64
	issues       map[int64]*models.DestinationIssue
	journals     []models.DestinationJournal
	customValues map[int64]map[int64]string
	watchers     map[int64][]int64

	calls []string

	CreateIssueErr    func(issue *models.DestinationIssue) error
	CreateJournalErr  error
	AddWatcherErr     error
	SetCustomValueErr error
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{
		projects:     make(map[string]models.Project),
		managers:     make(map[int64][]models.DestinationUser),
		principals:   make(map[int64][]models.DestinationUser),
		customFields: make(map[string]models.CustomField),
		nextIssueID:  1000,
		issues:       make(map[int64]*models.DestinationIssue),
		customValues: make(map[int64]map[int64]string),
		watchers:     make(map[int64][]int64),
	}
}

func (d *fakeDestination) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *fakeDestination) FindUserByEmail(_ context.Context, email string) (models.DestinationUser, bool, error) {
	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			return u, true, nil
		}
	}
	return models.DestinationUser{}, false, nil
}

func (d *fakeDestination) FindUserByLogin(_ context.Context, login string) (models.DestinationUser, bool, error) {
	for _, u := range d.users {
		if strings.EqualFold(u.Login, login) {
			return u, true, nil
		}
	}
	return models.DestinationUser{}, false, nil
}

func (d *fakeDestination) FindProject(_ context.Context, identifier string) (models.Project, bool, error) {
	p, ok := d.projects[identifier]
	return p, ok, nil
}

func (d *fakeDestination) ProjectUsersByRole(_ context.Context, projectID int64, _ string) ([]models.DestinationUser, error) {
	return d.managers[projectID], nil
}

func (d *fakeDestination) ProjectPrincipals(_ context.Context, projectID int64) ([]models.DestinationUser, error) {
	return d.principals[projectID], nil
}

func (d *fakeDestination) FindCustomField(_ context.Context, name string) (models.CustomField, bool, error) {
	f, ok := d.customFields[name]
	return f, ok, nil
}

func (d *fakeDestination) Statuses(context.Context) ([]models.Status, error) {
	return d.statuses, nil
}

func (d *fakeDestination) Priorities(context.Context) ([]models.Priority, error) {
	return d.priorities, nil
}

func (d *fakeDestination) Trackers(context.Context) ([]models.Tracker, error) {
	return d.trackers, nil
}

func (d *fakeDestination) HasCustomValue(_ context.Context, fieldID int64, value string) (bool, error) {
	for _, fields := range d.customValues {
		if v, ok := fields[fieldID]; ok && v == value {
			return true, nil
		}
	}
	return false, nil
}

func (d *fakeDestination) SetCustomValue(_ context.Context, fieldID, issueID int64, value string) error {
	if d.SetCustomValueErr != nil {
		return d.SetCustomValueErr
	}
	d.record("SetCustomValue(%d,%s)", issueID, value)
	if d.customValues[issueID] == nil {
		d.customValues[issueID] = make(map[int64]string)
	}
	d.customValues[issueID][fieldID] = value
	return nil
}

func (d *fakeDestination) CreateIssue(_ context.Context, issue *models.DestinationIssue) error {
	if d.CreateIssueErr != nil {
		if err := d.CreateIssueErr(issue); err != nil {
			return err
		}
	}
	if issue.ID == 0 {
		d.nextIssueID++
		issue.ID = d.nextIssueID
	}
	stored := *issue
	d.issues[issue.ID] = &stored
	d.record("CreateIssue(%d)", issue.ID)
	return nil
}

func (d *fakeDestination) CreateJournal(_ context.Context, journal *models.DestinationJournal) error {
	if d.CreateJournalErr != nil {
		return d.CreateJournalErr
	}
	journal.ID = int64(len(d.journals) + 1)
	d.journals = append(d.journals, *journal)
	d.record("CreateJournal(%d)", journal.IssueID)
	return nil
}

func (d *fakeDestination) AddWatcher(_ context.Context, issueID, userID int64) error {
	if d.AddWatcherErr != nil {
		return d.AddWatcherErr
	}
	d.watchers[issueID] = append(d.watchers[issueID], userID)
	d.record("AddWatcher(%d,%d)", issueID, userID)
	return nil
}

func (d *fakeDestination) journalsFor(issueID int64) []models.DestinationJournal {
	var out []models.DestinationJournal
	for _, j := range d.journals {
		if j.IssueID == issueID {
			out = append(out, j)
		}
	}
	return out
}

// issuesFor returns the issues carrying bugID as its marker value.
func (d *fakeDestination) issuesFor(fieldID, bugID int64) []*models.DestinationIssue {
	var out []*models.DestinationIssue
	value := fmt.Sprint(bugID)
	for issueID, fields := range d.customValues {
		if fields[fieldID] == value {
			out = append(out, d.issues[issueID])
		}
	}
	return out
}

var (
	t0 = time.Date(2009, 3, 2, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)

	runClock = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
)

const (
	projectID     int64 = 7
	markerFieldID int64 = 3
)

var (
	manager  = models.DestinationUser{ID: 1, Login: "admin", Email: "admin@example.com"}
	reporter = models.DestinationUser{ID: 2, Login: "rita", Email: "rita@example.com"}
	watcher  = models.DestinationUser{ID: 3, Login: "wally", Email: "wally@example.com"}
	ldapUser = models.DestinationUser{ID: 4, Login: "lars", Email: "lars@corp.example.com"}
	member   = models.DestinationUser{ID: 5, Login: "mona", Email: "mona@example.com"}

	statusNew        = models.Status{ID: 1, Name: "New", Position: 1}
	statusInProgress = models.Status{ID: 2, Name: "In Progress", Position: 2}
	statusResolved   = models.Status{ID: 3, Name: "Resolved", Position: 3}
	statusClosed     = models.Status{ID: 5, Name: "Closed", IsClosed: true, Position: 5}

	priorityLow       = models.Priority{ID: 10, Name: "Low", Position: 1}
	priorityNormal    = models.Priority{ID: 11, Name: "Normal", IsDefault: true, Position: 2}
	priorityEssential = models.Priority{ID: 12, Name: "Essential", Position: 3}
	priorityImmediate = models.Priority{ID: 13, Name: "Immediate", Position: 4}

	trackerBug     = models.Tracker{ID: 1, Name: "Bug", DefaultStatusID: 1}
	trackerFeature = models.Tracker{ID: 2, Name: "Feature", DefaultStatusID: 1}
)

// newFixture wires a project "proj" with a manager, three known users and
// Bugzilla profiles 20 (reporter), 21 (cc), 22 (extern id only) and 23
// (unknown to Redmine).
func newFixture() (*fakeSource, *fakeDestination) {
	source := newFakeSource()
	source.users[20] = models.SourceUser{ID: 20, LoginName: "Rita@Example.com", RealName: "Rita Reporter"}
	source.users[21] = models.SourceUser{ID: 21, LoginName: "wally@example.com"}
	source.users[22] = models.SourceUser{ID: 22, LoginName: "lars", ExternID: "LARS"}
	source.users[23] = models.SourceUser{ID: 23, LoginName: "ghost@elsewhere.example.com"}

	dest := newFakeDestination()
	dest.projects["proj"] = models.Project{ID: projectID, Identifier: "proj", Name: "Project"}
	dest.users = []models.DestinationUser{manager, reporter, watcher, ldapUser, member}
	dest.managers[projectID] = []models.DestinationUser{manager}
	dest.principals[projectID] = []models.DestinationUser{member, manager}
	dest.customFields["Bugzilla-Task"] = models.CustomField{ID: markerFieldID, Name: "Bugzilla-Task", FieldFormat: "string"}
	dest.statuses = []models.Status{statusNew, statusInProgress, statusResolved, statusClosed}
	dest.priorities = []models.Priority{priorityLow, priorityNormal, priorityEssential, priorityImmediate}
	dest.trackers = []models.Tracker{trackerBug, trackerFeature}
	return source, dest
}

func newTestEngine(source *fakeSource, dest *fakeDestination, failFast bool) *Engine {
	return NewEngine(source, dest, Options{
		BugzillaURL:       "https://bugzilla.example.com",
		RedmineURL:        "https://redmine.example.com",
		MarkerField:       "Bugzilla-Task",
		ManagerRole:       "Manager",
		PlaceholderDomain: "foo.bar",
		FailFast:          failFast,
		Clock:             func() time.Time { return runClock },
	})
}

func addBug(source *fakeSource, bug models.SourceBug, comments ...models.SourceComment) {
	source.bugs[bug.ID] = bug
	for i := range comments {
		comments[i].BugID = bug.ID
	}
	source.comments[bug.ID] = comments
}
