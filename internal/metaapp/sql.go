package metaapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/model"
)

const (
	DefaultSchema      = "metaapp_metaapp_crm"
	DefaultImportLimit = 100
	DefaultTimeout     = 15 * time.Second
)

var schemaPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Options tunes a SQLCRM. Zero values select the defaults.
type Options struct {
	Schema      string
	ImportLimit int
	Timeout     time.Duration
}

// SQLCRM talks to the MetaApp PostgreSQL database directly.
type SQLCRM struct {
	db      *sql.DB
	schema  string
	limit   int
	timeout time.Duration
	logger  claimer.Logger
}

var _ claimer.CRM = (*SQLCRM)(nil)

// NewSQLCRM wraps an open connection pool. The schema is interpolated into
// queries, so it must be a plain lower-case identifier.
func NewSQLCRM(db *sql.DB, opts Options, logger claimer.Logger) (*SQLCRM, error) {
	if opts.Schema == "" {
		opts.Schema = DefaultSchema
	}
	if !schemaPattern.MatchString(opts.Schema) {
		return nil, fmt.Errorf("invalid metaapp schema name: %q", opts.Schema)
	}
	if opts.ImportLimit <= 0 {
		opts.ImportLimit = DefaultImportLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = claimer.NewNopLogger()
	}
	return &SQLCRM{
		db:      db,
		schema:  opts.Schema,
		limit:   opts.ImportLimit,
		timeout: opts.Timeout,
		logger:  logger,
	}, nil
}

// InsertEntry calls the insert_vykaz_entry stored function. The call is a
// single statement, so MetaApp either stores the record or nothing.
func (c *SQLCRM) InsertEntry(ctx context.Context, entry *model.TimeEntry) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s.insert_vykaz_entry($1, $2, $3, $4, $5, $6, $7)`, c.schema)

	poznamka := ""
	if entry.Popis != nil {
		poznamka = *entry.Popis
	}
	var jira any
	if entry.Jira != nil {
		jira = *entry.Jira
	}

	var id sql.NullInt64
	err := c.db.QueryRowContext(ctx, query,
		entry.Autor, entry.Uloha, jira, entry.Datum.Format(time.DateOnly),
		entry.Hodiny, entry.Minuty, poznamka,
	).Scan(&id)
	if err != nil {
		return 0, remoteError("insert vykaz entry", err)
	}
	if !id.Valid {
		return 0, &claimer.RemoteError{Service: "metaapp", Detail: "insert_vykaz_entry returned no id"}
	}

	c.logger.Info("metaapp entry inserted", "vykaz_id", id.Int64, "autor", entry.Autor, "uloha", entry.Uloha)
	return id.Int64, nil
}

// ListEntries returns the newest records owned by author, up to the import limit.
func (c *SQLCRM) ListEntries(ctx context.Context, author string) ([]model.ExternalEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT a.id AS vykaz_id, a.login AS autor, a.datum, a.hodiny, a.minuty,
       a.jira, a.poznamka AS popis, b.znacky AS uloha
FROM (
    SELECT vykaz.id, app_user.login, vykaz.datum, vykaz.hodiny, vykaz.minuty, vykaz.jira, vykaz.poznamka
    FROM %[1]s.vykaz vykaz
    CROSS JOIN %[1]s.dale dale
    CROSS JOIN %[1]s.app_user app_user
    WHERE app_user.userid = dale.fk3040 AND dale.fk3038 = vykaz.id
      AND vykaz.validto IS NULL AND app_user.validto IS NULL AND dale.validto IS NULL
) a
LEFT JOIN (
    SELECT uloha.znacky, vykaz.id AS vykaz_id
    FROM %[1]s.vykaz vykaz
    CROSS JOIN %[1]s.dale dale
    CROSS JOIN %[1]s.uloha uloha
    WHERE uloha.id = dale.fk3033 AND dale.fk3038 = vykaz.id
      AND vykaz.validto IS NULL AND uloha.validto IS NULL AND dale.validto IS NULL
) b ON a.id = b.vykaz_id
WHERE a.login = $1
ORDER BY a.datum DESC
LIMIT $2`, c.schema)

	rows, err := c.db.QueryContext(ctx, query, author, c.limit)
	if err != nil {
		return nil, remoteError("list vykaz entries", err)
	}
	defer rows.Close()

	var out []model.ExternalEntry
	for rows.Next() {
		var (
			r              model.ExternalEntry
			hodiny, minuty sql.NullInt64
			jira, popis    sql.NullString
			uloha          sql.NullString
		)
		if err := rows.Scan(&r.VykazID, &r.Autor, &r.Datum, &hodiny, &minuty, &jira, &popis, &uloha); err != nil {
			return nil, remoteError("scan vykaz entry", err)
		}
		r.Hodiny = int(hodiny.Int64)
		r.Minuty = int(minuty.Int64)
		r.Jira = nonEmpty(jira)
		r.Popis = nonEmpty(popis)
		r.Uloha = nonEmpty(uloha)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, remoteError("list vykaz entries", err)
	}
	return out, nil
}

// ListTasks returns the tasks author is currently assigned to.
func (c *SQLCRM) ListTasks(ctx context.Context, author string) ([]model.CRMTask, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT u.znacky, u.nazov, a.login
FROM %[1]s.dale_uloha_riesitel r
LEFT JOIN %[1]s.uloha u ON r.fk3033 = u.id
LEFT JOIN %[1]s.app_user a ON COALESCE(r.fk3040, r.fk3062) = a.userid
WHERE r.validto IS NULL AND a.login = $1
GROUP BY u.znacky, u.nazov, a.login
ORDER BY u.znacky`, c.schema)

	rows, err := c.db.QueryContext(ctx, query, author)
	if err != nil {
		return nil, remoteError("list tasks", err)
	}
	defer rows.Close()

	var out []model.CRMTask
	for rows.Next() {
		var code, summary, login sql.NullString
		if err := rows.Scan(&code, &summary, &login); err != nil {
			return nil, remoteError("scan task", err)
		}
		if !code.Valid {
			continue
		}
		out = append(out, model.CRMTask{Code: code.String, Summary: summary.String, Login: login.String})
	}
	if err := rows.Err(); err != nil {
		return nil, remoteError("list tasks", err)
	}
	return out, nil
}

// Ping checks the connection.
func (c *SQLCRM) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return remoteError("ping", err)
	}
	return nil
}

func (c *SQLCRM) Close() error {
	return c.db.Close()
}

// remoteError keeps the PostgreSQL message verbatim; the stored function
// reports rejected input with RAISE EXCEPTION.
func remoteError(op string, err error) error {
	detail := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		detail = pgErr.Message
	}
	return &claimer.RemoteError{
		Service: "metaapp",
		Detail:  detail,
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}

func nonEmpty(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	v := s.String
	return &v
}
