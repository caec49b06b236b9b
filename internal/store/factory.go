package store

import (
	"fmt"
	"path/filepath"

	"docvault/internal/config"
	"docvault/internal/docvault"
)

// NewStoreFromConfig creates a Store implementation based on the store config type.
func NewStoreFromConfig(cfg config.StoreConfig) (docvault.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		st, err := Open(filepath.Join(cfg.DataDir, FileName))
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		st, err := Open(InMemory)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

// Opener wraps NewStoreFromConfig so services can defer opening until first use.
func Opener(cfg config.StoreConfig) docvault.StoreOpener {
	return func() (docvault.Store, error) {
		return NewStoreFromConfig(cfg)
	}
}
