package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/michal-palko/smart-claimer/internal/claimer"
)

// snapshotMarker prefixes every payload TestEncryptor produces, so a snapshot
// test can tell an encrypted upload from a raw SQLite file.
var snapshotMarker = []byte("CLMENC\x00\x00")

// TestEncryptor stands in for age in snapshot tests. Payloads are the marker
// followed by the plaintext. After Setup, Unlock only accepts the passphrase
// it was set up with, which lets restore tests hit ErrWrongPassphrase without
// key files.
type TestEncryptor struct {
	passphrase string
	locked     bool
}

var _ claimer.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

// Setup remembers passphrase as the only one Unlock accepts.
func (e *TestEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return errors.New("passphrase must not be empty")
	}
	e.passphrase = passphrase
	e.locked = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(snapshotMarker); err != nil {
		return fmt.Errorf("writing snapshot marker: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("writing snapshot payload: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (claimer.DecryptionContext, error) {
	if e.locked && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return markerContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

func (e *TestEncryptor) Suffix() string { return ".test" }

// markerContext strips the marker and refuses payloads without one.
type markerContext struct{}

func (markerContext) Decrypt(r io.Reader, w io.Writer) error {
	marker := make([]byte, len(snapshotMarker))
	if _, err := io.ReadFull(r, marker); err != nil {
		return fmt.Errorf("reading snapshot marker: %w", err)
	}
	if !bytes.Equal(marker, snapshotMarker) {
		return errors.New("payload was not produced by TestEncryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("writing snapshot payload: %w", err)
	}
	return nil
}
