package claimer

import (
	"context"
	"time"

	"github.com/michal-palko/smart-claimer/internal/model"
)

// EntryFilter narrows ListEntries. Zero values mean "no constraint".
type EntryFilter struct {
	From  time.Time
	To    time.Time
	Autor string
}

// Database is the Entry Store. Lookups return nil, nil when nothing matches.
type Database interface {
	// Entry operations

	// CreateEntry inserts a new entry and returns it with id and timestamps assigned.
	CreateEntry(ctx context.Context, entry *model.TimeEntry) (*model.TimeEntry, error)

	// GetEntry returns the entry with the given id.
	GetEntry(ctx context.Context, id int64) (*model.TimeEntry, error)

	// UpdateEntry replaces the user-editable fields of an existing entry.
	// Submission fields are never touched. Returns nil, nil if the entry is gone.
	UpdateEntry(ctx context.Context, entry *model.TimeEntry) (*model.TimeEntry, error)

	// DeleteEntry removes an entry. Returns false if it did not exist.
	DeleteEntry(ctx context.Context, id int64) (bool, error)

	// ListEntries returns entries ordered by date descending, then id descending.
	ListEntries(ctx context.Context, filter EntryFilter) ([]*model.TimeEntry, error)

	// MarkSubmitted sets the external id and submission timestamp in a single
	// conditional write. Returns false if the entry was already submitted or is gone.
	MarkSubmitted(ctx context.Context, id int64, vykazID int64, at time.Time) (bool, error)

	// FindExternalIDs returns the subset of ids already referenced by a local entry.
	FindExternalIDs(ctx context.Context, ids []int64) (map[int64]bool, error)

	// InsertImported inserts externally-owned entries in one transaction, skipping
	// any whose external id is already present. Returns the number inserted.
	InsertImported(ctx context.Context, entries []*model.TimeEntry) (int, error)

	// Template operations

	CreateTemplate(ctx context.Context, tmpl *model.Template) (*model.Template, error)
	ListTemplates(ctx context.Context, autor string) ([]*model.Template, error)
	DeleteTemplate(ctx context.Context, id int64, autor string) (bool, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// BackupTo writes a consistent copy of the store to destPath.
	BackupTo(destPath string) error

	// Close closes the database connection.
	Close() error
}
