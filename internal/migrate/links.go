package migrate

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/bzmigrate/pkg/models"
)

// IssueURL is the address of a Redmine issue.
func IssueURL(redmineURL string, issueID int64) string {
	return fmt.Sprintf("%s/issues/%d", strings.TrimRight(redmineURL, "/"), issueID)
}

// BugURL is the address of a Bugzilla bug.
func BugURL(bugzillaURL string, bugID int64) string {
	return fmt.Sprintf("%s/show_bug.cgi?id=%d", strings.TrimRight(bugzillaURL, "/"), bugID)
}

// AttachmentURL is the address of a Bugzilla attachment's details page.
func AttachmentURL(bugzillaURL string, attachmentID int64) string {
	return fmt.Sprintf("%s/attachment.cgi?id=%d&action=edit", strings.TrimRight(bugzillaURL, "/"), attachmentID)
}

func originNote(bugzillaURL string, bugID int64) string {
	return fmt.Sprintf("\n*Issue imported from Bugzilla.*\n\nOriginal Bugzilla ID: \"Task %d\":%s\n",
		bugID, BugURL(bugzillaURL, bugID))
}

func attachmentNote(bugzillaURL string, att models.SourceAttachment) string {
	return fmt.Sprintf("*Bugzilla attachment*: \"%s\":%s", att.Description, AttachmentURL(bugzillaURL, att.ID))
}

func movedNote(issueURL string) string {
	return fmt.Sprintf("\n*Task moved to Redmine.* %s\n\nPlease do not add comments here any more.\n", issueURL)
}
