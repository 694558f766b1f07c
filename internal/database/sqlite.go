package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/database/migrations"
	"github.com/michal-palko/smart-claimer/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const timestampFormat = time.RFC3339Nano

var entryColumns = []string{
	"id", "uloha", "autor", "datum", "hodiny", "minuty",
	"jira", "popis", "jira_name", "uloha_name",
	"created_at", "modified_at", "submitted_to_metaapp_at", "metaapp_vykaz_id",
}

var templateColumns = []string{"id", "name", "autor", "uloha", "hodiny", "minuty", "jira", "popis"}

// Repo provides a base for Squirrel-based repositories.
type Repo struct {
	DB *sql.DB
	SQ sq.StatementBuilderType
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db, SQ: sq.StatementBuilder}
}

// SQLiteDatabase implements claimer.Database on SQLite.
type SQLiteDatabase struct {
	*Repo
	clock claimer.Clock
	path  string
}

// NewSQLiteDatabase opens a SQLite Entry Store.
// path can be a file path or ":memory:" for an in-memory database.
// The schema is not applied; see Migrate.
func NewSQLiteDatabase(path string, clock claimer.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteDatabaseFromDB(db, path, clock), nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, clock claimer.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = claimer.RealClock{}
	}
	return &SQLiteDatabase{Repo: NewRepo(db), clock: clock, path: path}
}

// OpenConnection opens and configures a SQLite connection with appropriate PRAGMAs.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Migrate brings the schema to the latest version.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.DB)
}

// Entry operations

func (s *SQLiteDatabase) CreateEntry(ctx context.Context, entry *model.TimeEntry) (*model.TimeEntry, error) {
	now := s.clock.Now().UTC()
	q := s.SQ.Insert("time_entry").
		Columns("uloha", "autor", "datum", "hodiny", "minuty", "jira", "popis", "jira_name", "uloha_name", "created_at", "modified_at").
		Values(entry.Uloha, entry.Autor, formatDate(entry.Datum), entry.Hodiny, entry.Minuty,
			entry.Jira, entry.Popis, entry.JiraName, entry.UlohaName, now.Format(timestampFormat), now.Format(timestampFormat))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inserting entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading entry id: %w", err)
	}
	return s.GetEntry(ctx, id)
}

func (s *SQLiteDatabase) GetEntry(ctx context.Context, id int64) (*model.TimeEntry, error) {
	query, args, err := s.SQ.Select(entryColumns...).From("time_entry").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	entry, err := scanEntry(s.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding entry %d: %w", id, err)
	}
	return entry, nil
}

func (s *SQLiteDatabase) UpdateEntry(ctx context.Context, entry *model.TimeEntry) (*model.TimeEntry, error) {
	q := s.SQ.Update("time_entry").
		Set("uloha", entry.Uloha).
		Set("datum", formatDate(entry.Datum)).
		Set("hodiny", entry.Hodiny).
		Set("minuty", entry.Minuty).
		Set("jira", entry.Jira).
		Set("popis", entry.Popis).
		Set("jira_name", entry.JiraName).
		Set("uloha_name", entry.UlohaName).
		Set("modified_at", s.clock.Now().UTC().Format(timestampFormat)).
		Where(sq.Eq{"id": entry.ID})

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating entry %d: %w", entry.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("updating entry %d: %w", entry.ID, err)
	} else if n == 0 {
		return nil, nil
	}
	return s.GetEntry(ctx, entry.ID)
}

func (s *SQLiteDatabase) DeleteEntry(ctx context.Context, id int64) (bool, error) {
	query, args, err := s.SQ.Delete("time_entry").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("building delete: %w", err)
	}
	return s.execAffected(ctx, query, args)
}

func (s *SQLiteDatabase) ListEntries(ctx context.Context, filter claimer.EntryFilter) ([]*model.TimeEntry, error) {
	q := s.SQ.Select(entryColumns...).From("time_entry").OrderBy("datum DESC", "id DESC")
	if !filter.From.IsZero() {
		q = q.Where(sq.GtOrEq{"datum": formatDate(filter.From)})
	}
	if !filter.To.IsZero() {
		q = q.Where(sq.LtOrEq{"datum": formatDate(filter.To)})
	}
	if filter.Autor != "" {
		q = q.Where(sq.Eq{"autor": filter.Autor})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkSubmitted only matches entries that have no external id yet, so of two
// racing submissions at most one is recorded.
func (s *SQLiteDatabase) MarkSubmitted(ctx context.Context, id int64, vykazID int64, at time.Time) (bool, error) {
	q := s.SQ.Update("time_entry").
		Set("metaapp_vykaz_id", vykazID).
		Set("submitted_to_metaapp_at", at.UTC().Format(timestampFormat)).
		Where(sq.Eq{"id": id, "metaapp_vykaz_id": nil})

	query, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("building update: %w", err)
	}
	return s.execAffected(ctx, query, args)
}

func (s *SQLiteDatabase) FindExternalIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	found := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	query, args, err := s.SQ.Select("metaapp_vykaz_id").From("time_entry").
		Where(sq.Eq{"metaapp_vykaz_id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding external ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning external id: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}

func (s *SQLiteDatabase) InsertImported(ctx context.Context, entries []*model.TimeEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.clock.Now().UTC().Format(timestampFormat)
	inserted := 0
	for _, e := range entries {
		if e.MetaappVykazID == nil || e.SubmittedToMetaappAt == nil {
			return 0, fmt.Errorf("imported entry for %s on %s has no external id", e.Autor, formatDate(e.Datum))
		}
		// The partial unique index on metaapp_vykaz_id turns a concurrent import into a no-op.
		q := s.SQ.Insert("time_entry").
			Columns("uloha", "autor", "datum", "hodiny", "minuty", "jira", "popis",
				"created_at", "modified_at", "submitted_to_metaapp_at", "metaapp_vykaz_id").
			Values(e.Uloha, e.Autor, formatDate(e.Datum), e.Hodiny, e.Minuty, e.Jira, e.Popis,
				now, now, e.SubmittedToMetaappAt.UTC().Format(timestampFormat), *e.MetaappVykazID).
			Suffix("ON CONFLICT DO NOTHING")

		query, args, err := q.ToSql()
		if err != nil {
			return 0, fmt.Errorf("building insert: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("inserting imported entry %d: %w", *e.MetaappVykazID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("inserting imported entry %d: %w", *e.MetaappVykazID, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return inserted, nil
}

// Template operations

func (s *SQLiteDatabase) CreateTemplate(ctx context.Context, tmpl *model.Template) (*model.Template, error) {
	q := s.SQ.Insert("template").
		Columns("name", "autor", "uloha", "hodiny", "minuty", "jira", "popis").
		Values(tmpl.Name, tmpl.Autor, tmpl.Uloha, tmpl.Hodiny, tmpl.Minuty, tmpl.Jira, tmpl.Popis)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inserting template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading template id: %w", err)
	}

	created := *tmpl
	created.ID = id
	return &created, nil
}

func (s *SQLiteDatabase) ListTemplates(ctx context.Context, autor string) ([]*model.Template, error) {
	query, args, err := s.SQ.Select(templateColumns...).From("template").
		Where(sq.Eq{"autor": autor}).OrderBy("name", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var templates []*model.Template
	for rows.Next() {
		var t model.Template
		var uloha, hodiny, minuty, jira, popis sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &t.Autor, &uloha, &hodiny, &minuty, &jira, &popis); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		t.Uloha, t.Hodiny, t.Minuty = nullString(uloha), nullString(hodiny), nullString(minuty)
		t.Jira, t.Popis = nullString(jira), nullString(popis)
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}

func (s *SQLiteDatabase) DeleteTemplate(ctx context.Context, id int64, autor string) (bool, error) {
	query, args, err := s.SQ.Delete("template").Where(sq.Eq{"id": id, "autor": autor}).ToSql()
	if err != nil {
		return false, fmt.Errorf("building delete: %w", err)
	}
	return s.execAffected(ctx, query, args)
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.DB)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.DB.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *SQLiteDatabase) execAffected(ctx context.Context, query string, args []any) (bool, error) {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.TimeEntry, error) {
	var e model.TimeEntry
	var datum, created, modified string
	var jira, popis, jiraName, ulohaName, submitted sql.NullString
	var vykazID sql.NullInt64

	if err := row.Scan(&e.ID, &e.Uloha, &e.Autor, &datum, &e.Hodiny, &e.Minuty,
		&jira, &popis, &jiraName, &ulohaName, &created, &modified, &submitted, &vykazID); err != nil {
		return nil, err
	}

	var err error
	if e.Datum, err = time.Parse(time.DateOnly, datum); err != nil {
		return nil, fmt.Errorf("parsing datum %q: %w", datum, err)
	}
	if e.CreatedAt, err = time.Parse(timestampFormat, created); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", created, err)
	}
	if e.ModifiedAt, err = time.Parse(timestampFormat, modified); err != nil {
		return nil, fmt.Errorf("parsing modified_at %q: %w", modified, err)
	}
	if submitted.Valid {
		at, err := time.Parse(timestampFormat, submitted.String)
		if err != nil {
			return nil, fmt.Errorf("parsing submitted_to_metaapp_at %q: %w", submitted.String, err)
		}
		e.SubmittedToMetaappAt = &at
	}
	if vykazID.Valid {
		id := vykazID.Int64
		e.MetaappVykazID = &id
	}
	e.Jira, e.Popis = nullString(jira), nullString(popis)
	e.JiraName, e.UlohaName = nullString(jiraName), nullString(ulohaName)
	return &e, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// Compile-time check that SQLiteDatabase implements claimer.Database
var _ claimer.Database = (*SQLiteDatabase)(nil)
