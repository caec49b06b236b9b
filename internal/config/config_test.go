package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		User:    "alice",
		BaseDir: "/home/alice/.local/share/docvault",
		LogDir:  "/home/alice/.local/share/docvault/log",
		Store: StoreConfig{
			Type:    "sqlite",
			DataDir: "/home/alice/.local/share/docvault/data",
		},
		Encryption: EncryptionConfig{
			Type:       "aes-gcm",
			Iterations: 50000,
		},
		Analysis: AnalysisConfig{
			OCR:        "command",
			OCRCommand: "/usr/bin/tesseract",
			Classifier: "keyword",
			Categories: map[string][]string{
				"invoice": {"invoice", "total due"},
				"receipt": {"receipt"},
			},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.User != original.User {
		t.Errorf("User = %q, want %q", got.User, original.User)
	}
	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Store.Type != "sqlite" {
		t.Errorf("Store.Type = %q, want %q", got.Store.Type, "sqlite")
	}
	if got.Store.DataDir != original.Store.DataDir {
		t.Errorf("Store.DataDir = %q, want %q", got.Store.DataDir, original.Store.DataDir)
	}
	if got.Encryption.Type != "aes-gcm" {
		t.Errorf("Encryption.Type = %q, want %q", got.Encryption.Type, "aes-gcm")
	}
	if got.Encryption.Iterations != 50000 {
		t.Errorf("Encryption.Iterations = %d, want %d", got.Encryption.Iterations, 50000)
	}
	if got.Analysis.OCRCommand != "/usr/bin/tesseract" {
		t.Errorf("Analysis.OCRCommand = %q, want %q", got.Analysis.OCRCommand, "/usr/bin/tesseract")
	}
	if len(got.Analysis.Categories) != 2 {
		t.Fatalf("len(Analysis.Categories) = %d, want 2", len(got.Analysis.Categories))
	}
	if kw := got.Analysis.Categories["invoice"]; len(kw) != 2 || kw[1] != "total due" {
		t.Errorf("Categories[invoice] = %v, want the keyword list", kw)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("alice", "/data/docvault")

	if cfg.User != "alice" {
		t.Errorf("User = %q, want %q", cfg.User, "alice")
	}
	if cfg.BaseDir != "/data/docvault" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/docvault")
	}
	if cfg.LogDir != "/data/docvault/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/docvault/log")
	}
	if cfg.Store.Type != "sqlite" {
		t.Errorf("Store.Type = %q, want %q", cfg.Store.Type, "sqlite")
	}
	if cfg.Store.DataDir != "/data/docvault/data" {
		t.Errorf("Store.DataDir = %q, want %q", cfg.Store.DataDir, "/data/docvault/data")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docvault.toml")
		cfg := NewConfig("alice", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docvault.toml")
		cfg := NewConfig("alice", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docvault.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Store = StoreConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.User != "read-test" {
			t.Errorf("User = %q, want %q", got.User, "read-test")
		}
		if got.Store.Type != "memory" {
			t.Errorf("Store.Type = %q, want %q", got.Store.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/docvault.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
