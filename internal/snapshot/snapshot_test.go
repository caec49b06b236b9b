package snapshot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fileBackuper stands in for the store and writes fixed content as the
// backup file.
type fileBackuper struct {
	content []byte
}

func (f fileBackuper) BackupTo(path string) error {
	return os.WriteFile(path, f.content, 0600)
}

type failingBackuper struct{}

func (failingBackuper) BackupTo(string) error {
	return errors.New("database is locked")
}

func TestExportImport_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "vault.snapshot")
	content := []byte("sqlite file contents stand-in")

	if err := Export(fileBackuper{content: content}, snapPath, "passphrase"); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	encrypted, err := os.ReadFile(snapPath)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if !bytes.HasPrefix(encrypted, []byte("age-encryption.org/v1")) {
		t.Error("snapshot does not start with the age header")
	}
	if bytes.Contains(encrypted, content) {
		t.Error("snapshot contains the plaintext store file")
	}

	destPath := filepath.Join(dir, "restored.db")
	if err := Import(snapPath, destPath, "passphrase"); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	restored, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("reading restored store: %v", err)
	}
	if !bytes.Equal(restored, content) {
		t.Errorf("restored content = %q, want %q", restored, content)
	}
}

func TestExport(t *testing.T) {
	t.Run("rejects empty passphrase", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vault.snapshot")
		if err := Export(fileBackuper{}, path, ""); err == nil {
			t.Error("Export() expected error for empty passphrase")
		}
	})

	t.Run("propagates backup failures", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vault.snapshot")
		err := Export(failingBackuper{}, path, "passphrase")
		if err == nil {
			t.Fatal("Export() expected error from failing backup")
		}
		if !strings.Contains(err.Error(), "backing up store") {
			t.Errorf("error = %q, want backup context", err)
		}
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Error("failed export left a snapshot file behind")
		}
	})

	t.Run("creates the destination directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "vault.snapshot")
		if err := Export(fileBackuper{content: []byte("x")}, path, "passphrase"); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("snapshot not created: %v", err)
		}
	})
}

func TestImport(t *testing.T) {
	t.Run("wrong passphrase leaves existing store untouched", func(t *testing.T) {
		dir := t.TempDir()
		snapPath := filepath.Join(dir, "vault.snapshot")
		if err := Export(fileBackuper{content: []byte("new store")}, snapPath, "correct"); err != nil {
			t.Fatalf("Export() error = %v", err)
		}

		destPath := filepath.Join(dir, "store.db")
		sentinel := []byte("existing store")
		if err := os.WriteFile(destPath, sentinel, 0600); err != nil {
			t.Fatalf("seeding store file: %v", err)
		}

		if err := Import(snapPath, destPath, "wrong"); err == nil {
			t.Fatal("Import() expected error for wrong passphrase")
		}

		got, err := os.ReadFile(destPath)
		if err != nil {
			t.Fatalf("reading store file: %v", err)
		}
		if !bytes.Equal(got, sentinel) {
			t.Errorf("store file = %q, want untouched %q", got, sentinel)
		}
	})

	t.Run("rejects empty passphrase", func(t *testing.T) {
		if err := Import("unused", "unused", ""); err == nil {
			t.Error("Import() expected error for empty passphrase")
		}
	})

	t.Run("missing snapshot file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "store.db")
		if err := Import("/nonexistent/vault.snapshot", dest, "passphrase"); err == nil {
			t.Error("Import() expected error for missing snapshot")
		}
	})
}
