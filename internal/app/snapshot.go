package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/michal-palko/smart-claimer/internal/claimer"
)

const (
	snapshotPrefix     = "entries-"
	snapshotExt        = ".db"
	snapshotTimeLayout = "20060102T150405Z"
)

// sqliteMagic starts every SQLite database file.
var sqliteMagic = []byte("SQLite format 3\x00")

// ErrNoSnapshots is returned when restoring "latest" from an empty vault.
var ErrNoSnapshots = errors.New("no snapshots in vault")

// Snapshot describes one stored copy of the Entry Store.
type Snapshot struct {
	Name    string
	TakenAt time.Time
	Suffix  string // encryptor suffix, "" for plaintext
}

func snapshotName(at time.Time, suffix string) string {
	return snapshotPrefix + at.UTC().Format(snapshotTimeLayout) + snapshotExt + suffix
}

// parseSnapshot reports false for objects that were not written by Snapshotter.
func parseSnapshot(name string) (Snapshot, bool) {
	rest, ok := strings.CutPrefix(name, snapshotPrefix)
	if !ok || len(rest) < len(snapshotTimeLayout)+len(snapshotExt) {
		return Snapshot{}, false
	}
	ts, err := time.Parse(snapshotTimeLayout, rest[:len(snapshotTimeLayout)])
	if err != nil {
		return Snapshot{}, false
	}
	tail, ok := strings.CutPrefix(rest[len(snapshotTimeLayout):], snapshotExt)
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{Name: name, TakenAt: ts, Suffix: tail}, true
}

// backupSource produces a consistent copy of the store.
type backupSource interface {
	BackupTo(destPath string) error
}

// Snapshotter pushes encrypted copies of the Entry Store to a vault and
// brings them back.
type Snapshotter struct {
	source    backupSource
	vault     claimer.Vault
	encryptor claimer.Encryptor
	clock     claimer.Clock
	logger    claimer.Logger
}

func NewSnapshotter(source backupSource, v claimer.Vault, enc claimer.Encryptor, clock claimer.Clock, logger claimer.Logger) *Snapshotter {
	if logger == nil {
		logger = claimer.NewNopLogger()
	}
	if clock == nil {
		clock = claimer.RealClock{}
	}
	return &Snapshotter{source: source, vault: v, encryptor: enc, clock: clock, logger: logger}
}

// Create snapshots the store, encrypts it and uploads it. Returns the snapshot name.
func (s *Snapshotter) Create() (string, error) {
	if !s.encryptor.IsConfigured() {
		return "", fmt.Errorf("encryption keys not set up: run 'claimer config keys'")
	}

	tmpDir, err := os.MkdirTemp("", "claimer-snapshot-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// VACUUM INTO refuses to write over an existing file.
	plainPath := filepath.Join(tmpDir, "entries.db")
	if err := s.source.BackupTo(plainPath); err != nil {
		return "", fmt.Errorf("copying database: %w", err)
	}

	sealedPath := filepath.Join(tmpDir, "entries.db.sealed")
	if err := s.encryptFile(plainPath, sealedPath); err != nil {
		return "", err
	}

	f, err := os.Open(sealedPath)
	if err != nil {
		return "", fmt.Errorf("opening sealed snapshot: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat sealed snapshot: %w", err)
	}

	name := snapshotName(s.clock.Now(), s.encryptor.Suffix())
	if err := s.vault.PutSnapshot(name, f, info.Size()); err != nil {
		return "", fmt.Errorf("uploading snapshot: %w", err)
	}
	s.logger.Info("snapshot uploaded", "name", name, "size", info.Size())
	return name, nil
}

func (s *Snapshotter) encryptFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening database copy: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating sealed snapshot: %w", err)
	}
	if err := s.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	return out.Close()
}

// List returns the snapshots in the vault, oldest first.
func (s *Snapshotter) List() ([]Snapshot, error) {
	names, err := s.vault.ListSnapshots()
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	var out []Snapshot
	for _, n := range names {
		if snap, ok := parseSnapshot(n); ok {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.Before(out[j].TakenAt) })
	return out, nil
}

// Resolve maps "latest" (or "") to the newest snapshot name.
func (s *Snapshotter) Resolve(name string) (string, error) {
	if name != "" && name != "latest" {
		return name, nil
	}
	snaps, err := s.List()
	if err != nil {
		return "", err
	}
	if len(snaps) == 0 {
		return "", ErrNoSnapshots
	}
	return snaps[len(snaps)-1].Name, nil
}

// Restore downloads the named snapshot, decrypts it and atomically replaces
// destPath. The database at destPath must be closed.
func (s *Snapshotter) Restore(name, passphrase, destPath string) error {
	snap, ok := parseSnapshot(name)
	if !ok {
		return fmt.Errorf("not a snapshot name: %q", name)
	}
	if snap.Suffix != s.encryptor.Suffix() {
		return fmt.Errorf("snapshot %s was not written with the configured encryption", name)
	}

	dc, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}

	var sealed bytes.Buffer
	if err := s.vault.GetSnapshot(name, &sealed); err != nil {
		return fmt.Errorf("downloading snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := dc.Decrypt(&sealed, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := checkSQLite(tmpPath); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("replacing database: %w", err)
	}
	s.logger.Info("snapshot restored", "name", name, "path", destPath)
	return nil
}

func checkSQLite(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening restored file: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, sqliteMagic) {
		return fmt.Errorf("restored snapshot is not a SQLite database")
	}
	return nil
}
