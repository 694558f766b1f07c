package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/config"
	"github.com/michal-palko/smart-claimer/internal/testutil"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.MetaApp.Type = "memory"
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *ClaimerApp {
	t.Helper()
	a, err := NewClaimerApp(cfg, Options{Component: "test", Clock: testutil.FixedClock()})
	if err != nil {
		t.Fatalf("NewClaimerApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewClaimerApp_Wiring(t *testing.T) {
	a := newTestApp(t, newTestConfig(t))

	if a.Tracker() != nil {
		t.Error("Tracker() non-nil without jira url")
	}
	if _, err := a.Issues(context.Background(), "jnovak", false); !errors.Is(err, ErrJiraDisabled) {
		t.Errorf("Issues() error = %v, want ErrJiraDisabled", err)
	}

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	body := `{"uloha":"OPS","autor":"jnovak","datum":"2024-01-15","hodiny":1,"minuty":15,"popis":"standup"}`
	resp, err := http.Post(srv.URL+"/time-entries", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /time-entries: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /time-entries status = %d", resp.StatusCode)
	}

	entries, err := a.Service().ListEntries(context.Background(), claimer.EntryFilter{Autor: "jnovak"})
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListEntries() = %d entries, want 1", len(entries))
	}

	// The memory CRM accepts any login when no users are registered.
	submitted, err := a.Service().SubmitEntry(context.Background(), entries[0].ID)
	if err != nil {
		t.Fatalf("SubmitEntry() error = %v", err)
	}
	if !submitted.IsSubmitted() {
		t.Error("entry not marked submitted")
	}
}

func TestNewClaimerApp_Errors(t *testing.T) {
	t.Run("unknown database type", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Database.Type = "mysql"
		if _, err := NewClaimerApp(cfg, Options{}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("jira without credentials", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Jira.URL = "https://jira.example.com"
		if _, err := NewClaimerApp(cfg, Options{}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("incomplete postgres config", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.MetaApp.Type = "postgres"
		if _, err := NewClaimerApp(cfg, Options{}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestClaimerApp_BackupRestore(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t))

	in := claimer.EntryInput{Uloha: "OPS", Autor: "jnovak", Datum: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Hodiny: 2}
	if _, err := a.Service().CreateEntry(ctx, in); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}

	name, err := a.Backup()
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if !strings.HasPrefix(name, "entries-") {
		t.Errorf("Backup() name = %q", name)
	}

	// Written after the snapshot, so gone after restore.
	in.Uloha = "LATER"
	if _, err := a.Service().CreateEntry(ctx, in); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}

	restored, err := a.Restore("latest", "")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored != name {
		t.Errorf("Restore() = %q, want %q", restored, name)
	}

	entries, err := a.Service().ListEntries(ctx, claimer.EntryFilter{})
	if err != nil {
		t.Fatalf("ListEntries() after restore error = %v", err)
	}
	if len(entries) != 1 || entries[0].Uloha != "OPS" {
		t.Errorf("entries after restore = %+v", entries)
	}
}

func TestClaimerApp_RestoreRequiresSQLite(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database.Type = "memory"
	a := newTestApp(t, cfg)
	if _, err := a.Restore("latest", ""); err == nil {
		t.Error("Restore() expected error for memory database")
	}
}

func TestClaimerApp_Serve(t *testing.T) {
	a := newTestApp(t, newTestConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
