package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/michal-palko/smart-claimer/internal/assist"
	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/config"
	"github.com/michal-palko/smart-claimer/internal/database"
	"github.com/michal-palko/smart-claimer/internal/encryption"
	"github.com/michal-palko/smart-claimer/internal/httpapi"
	"github.com/michal-palko/smart-claimer/internal/issuecache"
	"github.com/michal-palko/smart-claimer/internal/jira"
	"github.com/michal-palko/smart-claimer/internal/metaapp"
	"github.com/michal-palko/smart-claimer/internal/model"
	"github.com/michal-palko/smart-claimer/internal/vault"
)

// shutdownTimeout bounds how long Serve waits for in-flight requests.
const shutdownTimeout = 10 * time.Second

// ErrJiraDisabled is returned by JIRA lookups when no JIRA url is configured.
var ErrJiraDisabled = errors.New("jira is not configured")

// ClaimerApp is the application layer between the CLI and claimer.Service.
// It constructs all dependencies from config and manages their lifecycle on Close.
type ClaimerApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	tracker   *jira.Client // nil when JIRA is not configured
	issues    *issuecache.Session // nil when JIRA is not configured
	crm       metaapp.Store // nil when MetaApp is not configured
	assistant *assist.Client
	service   *claimer.Service
	clock     claimer.Clock
	logger    claimer.Logger
	logFile   *os.File
}

// Options tune NewClaimerApp.
type Options struct {
	Component string // written in every log line, usually the CLI command
	Verbose   bool
	Clock     claimer.Clock
}

// NewClaimerApp creates a fully wired ClaimerApp from the given config.
// The caller must call Close when done.
func NewClaimerApp(cfg *config.Config, opts Options) (*ClaimerApp, error) {
	if opts.Clock == nil {
		opts.Clock = claimer.RealClock{}
	}
	if opts.Component == "" {
		opts.Component = "claimer"
	}

	slogger, logFile, err := newLogger(cfg.LogDir, opts.Component, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a, err := wire(cfg, logger, opts.Clock)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.logFile = logFile
	return a, nil
}

// wire builds every collaborator. On error, everything opened so far is closed.
func wire(cfg *config.Config, logger claimer.Logger, clock claimer.Clock) (*ClaimerApp, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, clock)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	a := &ClaimerApp{cfg: cfg, db: db, clock: clock, logger: logger}

	var resolver claimer.IssueResolver
	if cfg.Jira.Enabled() {
		tracker, err := jira.NewClientFromConfig(cfg.Jira, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating jira client: %w", err)
		}
		a.tracker = tracker
		a.issues = issuecache.NewSession(issuecache.New(tracker, issuecache.Options{
			TTL:     cfg.Jira.CacheTTL.Duration,
			Size:    cfg.Jira.CacheSize,
			Timeout: cfg.Jira.Timeout.Duration,
		}, logger, clock))
		resolver = a.issues
	}

	crm, err := metaapp.NewCRMFromConfig(cfg.MetaApp, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating metaapp connection: %w", err)
	}
	var crmDep claimer.CRM
	if crm != nil {
		a.crm = crm
		crmDep = crm
	}

	a.assistant = assist.NewClientFromConfig(cfg.OpenAI, logger)
	a.service = claimer.NewService(db, resolver, crmDep, logger, clock)
	return a, nil
}

// Service returns the orchestration layer.
func (a *ClaimerApp) Service() *claimer.Service { return a.service }

// Logger returns the logger the app was built with.
func (a *ClaimerApp) Logger() claimer.Logger { return a.logger }

// Tracker returns the JIRA collaborator, or nil when JIRA is not configured.
func (a *ClaimerApp) Tracker() claimer.IssueTracker {
	if a.tracker == nil {
		return nil
	}
	return a.tracker
}

// Issues returns the issues assigned to author through the metadata cache,
// making author the acting author.
func (a *ClaimerApp) Issues(ctx context.Context, author string, refresh bool) ([]model.IssueMeta, error) {
	if a.issues == nil {
		return nil, ErrJiraDisabled
	}
	return a.issues.Issues(ctx, author, refresh)
}

// Handler returns the HTTP API wired to this app's collaborators.
func (a *ClaimerApp) Handler() http.Handler {
	deps := httpapi.Deps{
		Service:  a.service,
		Frontend: assist.PublicConfig(a.cfg.OpenAI, a.cfg.Whisper),
		Logger:   a.logger,
	}
	if a.issues != nil {
		deps.Issues = a.issues
		deps.Tracker = a.tracker
	}
	if a.assistant.Configured() {
		deps.Assistant = a.assistant
	}
	return httpapi.New(deps).Handler()
}

// Serve runs the HTTP API until ctx is cancelled, then drains in-flight requests.
func (a *ClaimerApp) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	if a.crm != nil {
		pingCtx, cancel := context.WithTimeout(ctx, a.cfg.MetaApp.Timeout.Duration)
		if err := a.crm.Ping(pingCtx); err != nil {
			a.logger.Warn("metaapp unreachable at startup", "error", err)
		}
		cancel()
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout.Duration,
		WriteTimeout: a.cfg.Server.WriteTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http: %w", err)
	}
	return nil
}

// Snapshotter returns a Snapshotter for the configured vault and encryption.
func (a *ClaimerApp) Snapshotter() (*Snapshotter, error) {
	v, err := vault.NewVaultFromConfig(a.cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	return NewSnapshotter(a.db, v, enc, a.clock, a.logger), nil
}

// Backup uploads an encrypted snapshot of the Entry Store. Returns its name.
func (a *ClaimerApp) Backup() (string, error) {
	s, err := a.Snapshotter()
	if err != nil {
		return "", err
	}
	return s.Create()
}

// Restore replaces the Entry Store with the named snapshot ("latest" for the
// newest) and reopens it. Only file-backed stores can be restored.
func (a *ClaimerApp) Restore(name, passphrase string) (string, error) {
	if a.cfg.Database.Type != "sqlite" {
		return "", fmt.Errorf("restore requires a sqlite database, have %q", a.cfg.Database.Type)
	}
	s, err := a.Snapshotter()
	if err != nil {
		return "", err
	}
	name, err = s.Resolve(name)
	if err != nil {
		return "", err
	}

	if err := a.db.Close(); err != nil {
		return "", fmt.Errorf("closing database: %w", err)
	}
	dest := filepath.Join(a.cfg.Database.DataDir, database.DatabaseFileName)
	restoreErr := s.Restore(name, passphrase, dest)

	// Reopen whatever is on disk now, restored or not.
	db, err := database.NewDatabaseFromConfig(a.cfg.Database, a.clock)
	if err != nil {
		return "", errors.Join(restoreErr, fmt.Errorf("reopening database: %w", err))
	}
	a.db = db
	var crm claimer.CRM
	if a.crm != nil {
		crm = a.crm
	}
	var resolver claimer.IssueResolver
	if a.issues != nil {
		resolver = a.issues
	}
	a.service = claimer.NewService(db, resolver, crm, a.logger, a.clock)

	if restoreErr != nil {
		return "", restoreErr
	}
	return name, nil
}

// SetupKeys generates the snapshot key pair.
func (a *ClaimerApp) SetupKeys(passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	return enc.Setup(passphrase)
}

// Close closes the CRM connection, the database and the log file.
func (a *ClaimerApp) Close() error {
	var errs []error
	if a.crm != nil {
		if err := a.crm.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing metaapp: %w", err))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}
