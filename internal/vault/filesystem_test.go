package vault

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileSystemVault(t *testing.T) {
	t.Run("creates directory structure", func(t *testing.T) {
		tmpDir := t.TempDir()
		root := filepath.Join(tmpDir, "vault")

		v, err := NewFileSystemVault("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}

		if _, err := os.Stat(filepath.Join(root, "snapshots")); err != nil {
			t.Errorf("snapshots directory not created: %v", err)
		}
		if v.name != "test" {
			t.Errorf("name = %q, want %q", v.name, "test")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		if _, err := NewFileSystemVault("test", t.TempDir()); err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
	})
}

func TestFileSystemVault_PutSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		snapshot string
		data     string
		size     int64
		wantErr  bool
	}{
		{
			name:     "store snapshot successfully",
			snapshot: "entries-20240115T103000Z.db.age",
			data:     "ciphertext",
			size:     10,
		},
		{
			name:     "size mismatch",
			snapshot: "entries-1.db",
			data:     "hello",
			size:     100,
			wantErr:  true,
		},
		{
			name:     "path traversal",
			snapshot: "../escape.db",
			data:     "x",
			size:     1,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewFileSystemVault("test", t.TempDir())
			if err != nil {
				t.Fatalf("NewFileSystemVault() error = %v", err)
			}

			err = v.PutSnapshot(tt.snapshot, strings.NewReader(tt.data), tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PutSnapshot() error = %v, wantErr %v", err, tt.wantErr)
			}

			entries, _ := os.ReadDir(v.snapshotsDir)
			if tt.wantErr {
				if len(entries) != 0 {
					t.Errorf("failed write left %d files behind", len(entries))
				}
				return
			}
			data, err := os.ReadFile(filepath.Join(v.snapshotsDir, tt.snapshot))
			if err != nil {
				t.Fatalf("failed to read snapshot file: %v", err)
			}
			if string(data) != tt.data {
				t.Errorf("content = %q, want %q", string(data), tt.data)
			}
		})
	}
}

func TestFileSystemVault_GetSnapshot(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	t.Run("retrieve existing snapshot", func(t *testing.T) {
		data := "snapshot bytes"
		if err := v.PutSnapshot("entries-1.db", strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetSnapshot("entries-1.db", &buf); err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("content = %q, want %q", buf.String(), data)
		}
	})

	t.Run("snapshot not found", func(t *testing.T) {
		var buf bytes.Buffer
		err := v.GetSnapshot("nonexistent", &buf)
		if err == nil || !strings.Contains(err.Error(), "snapshot not found") {
			t.Errorf("error = %v, want error containing 'snapshot not found'", err)
		}
	})
}

func TestFileSystemVault_ListSnapshots(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	for _, name := range []string{"entries-2.db", "entries-1.db", "entries-3.db"} {
		if err := v.PutSnapshot(name, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("PutSnapshot(%s) error = %v", name, err)
		}
	}
	// A leftover from an interrupted write.
	os.WriteFile(filepath.Join(v.snapshotsDir, ".tmp-123"), []byte("partial"), 0644)

	got, err := v.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	want := []string{"entries-1.db", "entries-2.db", "entries-3.db"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ListSnapshots() = %v, want %v", got, want)
	}
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	t.Run("valid setup", func(t *testing.T) {
		v, err := NewFileSystemVault("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		if err := v.ValidateSetup(); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})

	t.Run("missing root directory", func(t *testing.T) {
		v := &FileSystemVault{
			name:         "test",
			root:         "/nonexistent/path",
			snapshotsDir: "/nonexistent/path/snapshots",
		}
		if err := v.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error for missing root")
		}
	})
}
