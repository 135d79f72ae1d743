// Package models defines data structures shared across the application.
package models

import (
	"regexp"
	"strings"
	"time"
)

// SourceUser represents a Bugzilla profile.
type SourceUser struct {
	// ID is the Bugzilla profile id (profiles.userid)
	ID int64

	// RealName is the free-form display name
	RealName string

	// LoginName is the Bugzilla login, usually an e-mail address
	LoginName string

	// ExternID is the external authentication identifier (LDAP, AD), if any
	ExternID string
}

var loginReplacer = regexp.MustCompile(`[^a-zA-Z0-9_\-@.]`)

// Login returns a sanitized login derived from the Bugzilla login name.
// It is truncated to 30 characters and characters outside [a-zA-Z0-9_-@.]
// are replaced by '-'.
func (u SourceUser) Login() string {
	login := []rune(u.LoginName)
	if len(login) > 30 {
		login = login[:30]
	}
	return loginReplacer.ReplaceAllString(string(login), "-")
}

// Email returns the best-effort e-mail for the user. A login that already
// contains '@' is returned as is; otherwise placeholderDomain is appended.
func (u SourceUser) Email(placeholderDomain string) string {
	if strings.Contains(u.LoginName, "@") {
		return u.LoginName
	}
	return u.LoginName + "@" + placeholderDomain
}

// FirstName returns the first word of the real name, or "unknown".
func (u SourceUser) FirstName() string {
	parts := nameParts(u.RealName)
	if len(parts) == 0 {
		return "unknown"
	}
	return parts[0]
}

// LastName returns the last word of the real name, or "unknown".
func (u SourceUser) LastName() string {
	parts := nameParts(u.RealName)
	if len(parts) == 0 {
		return "unknown"
	}
	return parts[len(parts)-1]
}

func nameParts(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

// SourceBug represents a Bugzilla bug with the fields the migration needs.
type SourceBug struct {
	// ID is the Bugzilla bug id
	ID int64

	// ProductID references the Bugzilla product
	ProductID int64

	// Title is the bug summary (short_desc)
	Title string

	// Status is the Bugzilla status code (e.g., "NEW", "ASSIGNED")
	Status string

	// Priority is the Bugzilla priority code (e.g., "P1")
	Priority string

	// Severity is the Bugzilla severity (e.g., "enhancement", "major")
	Severity string

	// ReporterID is the profile id of the reporter
	ReporterID int64

	// AssigneeID is the profile id of the assignee, 0 when unassigned
	AssigneeID int64

	// CreatedAt is the bug creation timestamp
	CreatedAt time.Time

	// UpdatedAt is the last-change timestamp (delta_ts)
	UpdatedAt time.Time

	// CrossReference is the address of the destination issue, set after migration
	CrossReference string
}

// HasAssignee reports whether the bug is assigned to anybody.
func (b SourceBug) HasAssignee() bool {
	return b.AssigneeID != 0
}

// SourceComment represents one entry of a bug's comment history.
type SourceComment struct {
	ID       int64
	BugID    int64
	AuthorID int64
	When     time.Time

	// Text is the comment body; empty when Bugzilla stored none
	Text string
}

// SourceAttachment represents attachment metadata. Payloads are never read.
type SourceAttachment struct {
	ID          int64
	BugID       int64
	SubmitterID int64
	Description string
	Filename    string
	MimeType    string
	CreatedAt   time.Time
}

// SourceWatcher is one CC entry of a bug.
type SourceWatcher struct {
	BugID  int64
	UserID int64
}

// Project is a Redmine project.
type Project struct {
	ID         int64
	Identifier string
	Name       string
}

// DestinationUser is a Redmine principal.
type DestinationUser struct {
	ID        int64
	Login     string
	FirstName string
	LastName  string
	Email     string
}

// String returns the user's display name, falling back to the login.
func (u DestinationUser) String() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Login
	}
	return name
}

// Status is a Redmine issue status.
type Status struct {
	ID       int64
	Name     string
	IsClosed bool
	Position int
}

// Priority is a Redmine issue priority enumeration.
type Priority struct {
	ID        int64
	Name      string
	IsDefault bool
	Position  int
}

// Tracker is a Redmine tracker (issue type).
type Tracker struct {
	ID              int64
	Name            string
	DefaultStatusID int64
}

// CustomField is a Redmine issue custom field.
type CustomField struct {
	ID          int64
	Name        string
	FieldFormat string
}

// DestinationIssue is the Redmine issue created for a migrated bug.
type DestinationIssue struct {
	// ID is assigned by the store on create. A non-zero ID before create asks
	// the store to reuse that key instead of generating one.
	ID int64

	ProjectID   int64
	TrackerID   int64
	StatusID    int64
	PriorityID  int64
	AuthorID    int64
	AssigneeID  int64
	Subject     string
	Description string
	StartDate   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DestinationJournal is a note attached to a Redmine issue.
type DestinationJournal struct {
	ID        int64
	IssueID   int64
	AuthorID  int64
	CreatedAt time.Time
	Notes     string
}
