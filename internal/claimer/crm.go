package claimer

import (
	"context"

	"github.com/michal-palko/smart-claimer/internal/model"
)

// CRM is the external system of record (MetaApp).
type CRM interface {
	// InsertEntry records the entry remotely and returns the external id.
	// It either succeeds completely or not at all.
	InsertEntry(ctx context.Context, entry *model.TimeEntry) (int64, error)

	// ListEntries returns the records owned by author, newest first.
	ListEntries(ctx context.Context, author string) ([]model.ExternalEntry, error)

	// ListTasks returns the tasks author is currently assigned to.
	ListTasks(ctx context.Context, author string) ([]model.CRMTask, error)
}
