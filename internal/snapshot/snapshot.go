package snapshot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// Backuper produces a consistent copy of the live store file.
type Backuper interface {
	BackupTo(path string) error
}

// Export writes an encrypted snapshot of the store to destPath. The store
// file is copied through a backup first, so the snapshot is a consistent
// database even while the store stays open. The snapshot is encrypted with
// age's scrypt-based passphrase encryption.
func Export(b Backuper, destPath, passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}

	dir, err := os.MkdirTemp("", "docvault-snapshot-*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(dir)

	plain := filepath.Join(dir, "snapshot.db")
	if err := b.BackupTo(plain); err != nil {
		return fmt.Errorf("backing up store: %w", err)
	}

	src, err := os.Open(plain)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer src.Close()

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	return writeAtomic(destPath, func(w io.Writer) error {
		encWriter, err := age.Encrypt(w, recipient)
		if err != nil {
			return fmt.Errorf("creating encrypted writer: %w", err)
		}
		if _, err := io.Copy(encWriter, src); err != nil {
			return fmt.Errorf("encrypting snapshot: %w", err)
		}
		if err := encWriter.Close(); err != nil {
			return fmt.Errorf("finalizing encryption: %w", err)
		}
		return nil
	})
}

// Import decrypts the snapshot at srcPath and installs it as the store file
// at destPath. The store must be closed first. The write is atomic, so a
// wrong passphrase leaves an existing store file untouched.
func Import(srcPath, destPath, passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer src.Close()

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(src, identity)
	if err != nil {
		return fmt.Errorf("decrypting snapshot: %w", err)
	}

	return writeAtomic(destPath, func(w io.Writer) error {
		if _, err := io.Copy(w, decReader); err != nil {
			return fmt.Errorf("reading decrypted snapshot: %w", err)
		}
		return nil
	})
}

// writeAtomic writes to destPath through a temp file in the same directory
// followed by a rename.
func writeAtomic(destPath string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := fill(tmpFile); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
