package model

import "time"

// TimeEntry is a single logged time record owned by its Autor.
// Optional fields are nil when absent.
type TimeEntry struct {
	ID         int64
	Uloha      string    // task code the time is charged to
	Autor      string    // free-text display name of the owner
	Datum      time.Time // calendar day, midnight UTC
	Hodiny     int
	Minuty     int       // 0-59
	Jira       *string   // linked JIRA key
	Popis      *string   // description
	JiraName   *string   // snapshot of the JIRA summary at write time
	UlohaName  *string   // snapshot of the task summary at write time
	CreatedAt  time.Time
	ModifiedAt time.Time

	SubmittedToMetaappAt *time.Time
	MetaappVykazID       *int64 // external id assigned by MetaApp
}

// IsSubmitted reports whether the entry already carries an external id.
func (e *TimeEntry) IsSubmitted() bool {
	return e.MetaappVykazID != nil
}

// Template is a named, author-scoped preset used to prefill the entry form.
// Hodiny and Minuty are kept as typed by the user.
type Template struct {
	ID     int64
	Name   string
	Autor  string
	Uloha  *string
	Hodiny *string
	Minuty *string
	Jira   *string
	Popis  *string
}

// IssueMeta is the subset of a JIRA issue the reconciler cares about.
type IssueMeta struct {
	Key           string
	Summary       string
	ParentKey     string
	ParentSummary string
	ParentColor   string
	SprintName    string
	Status        string
	Assignee      string
}

// ParentRef identifies the parent of a JIRA issue.
type ParentRef struct {
	Key     string
	Summary string
}

// IssueDetails is the expanded view of a single JIRA issue.
type IssueDetails struct {
	Key         string
	Summary     string
	Status      string
	StatusColor string
	Priority    string
	Description string // simplified HTML
	Comments    []IssueComment
	BaseURL     string
}

// IssueComment is one comment on an issue.
type IssueComment struct {
	ID        string
	Body      string
	Author    string
	AvatarURL string
	Created   string
}

// ExternalEntry is a time record owned by MetaApp.
type ExternalEntry struct {
	VykazID int64
	Autor   string
	Datum   time.Time
	Hodiny  int
	Minuty  int
	Jira    *string
	Popis   *string
	Uloha   *string
}

// CRMTask is a task a user is assigned to in MetaApp.
type CRMTask struct {
	Code    string
	Summary string
	Login   string
}
