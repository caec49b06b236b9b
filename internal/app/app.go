package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docvault/internal/analysis"
	"docvault/internal/config"
	"docvault/internal/docvault"
	"docvault/internal/encryption"
	"docvault/internal/snapshot"
	"docvault/internal/store"
)

// App is the application layer between the CLI and the document service.
// It constructs all dependencies from config, exposes the shared Service and
// Pipeline, and manages the store and log file lifecycle on Close.
type App struct {
	cfg      *config.Config
	service  *docvault.Service
	pipeline *docvault.Pipeline
	logFile  *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "add", "process") and
// tags every log line of this run. The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	cipher, err := encryption.NewCipherFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	recognizer, err := analysis.NewRecognizerFromConfig(cfg.Analysis)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating recognizer: %w", err)
	}
	classifier, err := analysis.NewClassifierFromConfig(cfg.Analysis, recognizer)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating classifier: %w", err)
	}

	user := cfg.User
	if user == "" {
		user = os.Getenv("USER")
	}
	actor := docvault.NewActor(user, "", "docvault-cli")

	log := &slogAdapter{l: logger}
	svc := docvault.NewService(store.Opener(cfg.Store), actor, log, docvault.RealClock{})
	pipe := docvault.NewPipeline(svc, cipher, recognizer, classifier, analysis.NewPDFRenderer(),
		docvault.UUIDGenerator{}, docvault.ULIDGenerator{}, docvault.RealClock{}, log)

	return &App{
		cfg:      cfg,
		service:  svc,
		pipeline: pipe,
		logFile:  logFile,
	}, nil
}

// Service returns the shared document service.
func (a *App) Service() *docvault.Service { return a.service }

// Pipeline returns the shared processing pipeline.
func (a *App) Pipeline() *docvault.Pipeline { return a.pipeline }

// ExportSnapshot writes an encrypted snapshot of the store to destPath.
func (a *App) ExportSnapshot(destPath, passphrase string) error {
	return snapshot.Export(a.service, destPath, passphrase)
}

// ImportSnapshot replaces the store file with the decrypted snapshot. Only
// file-backed stores can be restored into; the service is closed first so
// the file is not swapped under an open connection.
func (a *App) ImportSnapshot(srcPath, passphrase string) error {
	if a.cfg.Store.Type != "sqlite" {
		return fmt.Errorf("snapshot import requires a sqlite store, got %q", a.cfg.Store.Type)
	}
	if err := a.service.Close(); err != nil {
		return fmt.Errorf("closing service before import: %w", err)
	}
	dest := filepath.Join(a.cfg.Store.DataDir, store.FileName)
	return snapshot.Import(srcPath, dest, passphrase)
}

// Close closes the service and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.service.Close(); err != nil {
		firstErr = fmt.Errorf("closing service: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
