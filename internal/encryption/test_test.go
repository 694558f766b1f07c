package encryption

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/michal-palko/smart-claimer/internal/config"
)

func TestTestEncryptor_RoundTrip(t *testing.T) {
	t.Parallel()

	e := NewTestEncryptor()
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false")
	}

	for _, input := range [][]byte{[]byte("snapshot"), {}} {
		var enc bytes.Buffer
		if err := e.Encrypt(bytes.NewReader(input), &enc); err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if !bytes.HasPrefix(enc.Bytes(), snapshotMarker) {
			t.Error("output does not start with test header")
		}
		dc, _ := e.Unlock("any")
		var dec bytes.Buffer
		if err := dc.Decrypt(&enc, &dec); err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if !bytes.Equal(dec.Bytes(), input) {
			t.Errorf("round trip = %q, want %q", dec.Bytes(), input)
		}
	}
}

func TestTestEncryptor_BadPayload(t *testing.T) {
	t.Parallel()

	for name, in := range map[string]string{
		"wrong header": "NOT_VALID_HEADER_data",
		"truncated":    "CLM",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			if err := (markerContext{}).Decrypt(strings.NewReader(in), &out); err == nil {
				t.Error("Decrypt() expected error")
			}
		})
	}
}

func TestTestEncryptor_Passphrase(t *testing.T) {
	t.Parallel()

	e := NewTestEncryptor()
	if _, err := e.Unlock("anything"); err != nil {
		t.Fatalf("Unlock() before Setup error = %v", err)
	}
	if err := e.Setup(""); err == nil {
		t.Error("Setup(\"\") expected error")
	}
	if err := e.Setup("secret"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := e.Unlock("wrong"); !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("Unlock(wrong) error = %v, want ErrWrongPassphrase", err)
	}
	if _, err := e.Unlock("secret"); err != nil {
		t.Errorf("Unlock(secret) error = %v", err)
	}
}

func TestNoneEncryptor(t *testing.T) {
	t.Parallel()

	e := NoneEncryptor{}
	if e.Suffix() != "" || !e.IsConfigured() {
		t.Fatalf("NoneEncryptor suffix=%q configured=%v", e.Suffix(), e.IsConfigured())
	}
	var enc bytes.Buffer
	if err := e.Encrypt(strings.NewReader("plain"), &enc); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if enc.String() != "plain" {
		t.Errorf("Encrypt() = %q, want passthrough", enc.String())
	}
	dc, _ := e.Unlock("")
	var dec bytes.Buffer
	if err := dc.Decrypt(&enc, &dec); err != nil || dec.String() != "plain" {
		t.Errorf("Decrypt() = %q, %v", dec.String(), err)
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.EncryptionConfig
		suffix  string
		wantErr bool
	}{
		{name: "age", cfg: config.EncryptionConfig{Type: "age", PublicKeyPath: "a.pub", PrivateKeyPath: "a.key"}, suffix: ".age"},
		{name: "default is age", cfg: config.EncryptionConfig{PublicKeyPath: "a.pub", PrivateKeyPath: "a.key"}, suffix: ".age"},
		{name: "age without paths", cfg: config.EncryptionConfig{Type: "age"}, wantErr: true},
		{name: "none", cfg: config.EncryptionConfig{Type: "none"}, suffix: ""},
		{name: "test", cfg: config.EncryptionConfig{Type: "test"}, suffix: ".test"},
		{name: "unknown", cfg: config.EncryptionConfig{Type: "rot13"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEncryptorFromConfig(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEncryptorFromConfig() error = %v", err)
			}
			if e.Suffix() != tt.suffix {
				t.Errorf("Suffix() = %q, want %q", e.Suffix(), tt.suffix)
			}
		})
	}
}
