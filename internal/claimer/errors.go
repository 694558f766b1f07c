package claimer

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrRemote           = errors.New("remote service error")
	ErrOwnership        = errors.New("ownership violation")
)

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConfirmationRequiredError is a soft validation failure: the write proceeds
// once the caller repeats it with explicit confirmation.
type ConfirmationRequiredError struct {
	Reason string
}

func (e *ConfirmationRequiredError) Error() string {
	return "confirmation required: " + e.Reason
}

func (e *ConfirmationRequiredError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing entry, template or unresolvable code.
type NotFoundError struct {
	Kind string // "entry", "template", "issue"
	Key  string
	Err  error // underlying cause when the lookup degraded
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

// AlreadySubmittedError is returned when an entry already carries an external id.
type AlreadySubmittedError struct {
	EntryID    int64
	ExternalID int64
}

func (e *AlreadySubmittedError) Error() string {
	return fmt.Sprintf("entry %d already submitted to MetaApp (vykaz %d)", e.EntryID, e.ExternalID)
}

func (e *AlreadySubmittedError) Is(target error) bool { return target == ErrAlreadySubmitted }

// RemoteError wraps a failure of JIRA, MetaApp or the AI service.
// Detail carries the upstream message verbatim.
type RemoteError struct {
	Service  string
	Status   int  // HTTP status when known
	Rejected bool // the remote refused the request as invalid
	Detail   string
	Err      error
}

func (e *RemoteError) Error() string {
	detail := e.Detail
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("%s error: %s", e.Service, detail)
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

func (e *RemoteError) Unwrap() error { return e.Err }

// OwnershipError rejects a mutation by someone other than the entry's author.
// Authorship is self-declared, so this is advisory rather than a security control.
type OwnershipError struct {
	Kind  string
	ID    int64
	Owner string
	Actor string
}

func (e *OwnershipError) Error() string {
	if e.Actor == "" {
		return fmt.Sprintf("%s %d: acting author is required", e.Kind, e.ID)
	}
	return fmt.Sprintf("%s %d belongs to %q, not %q", e.Kind, e.ID, e.Owner, e.Actor)
}

func (e *OwnershipError) Is(target error) bool { return target == ErrOwnership }
