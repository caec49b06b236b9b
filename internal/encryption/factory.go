package encryption

import (
	"fmt"

	"docvault/internal/config"
	"docvault/internal/docvault"
)

// NewCipherFromConfig creates a Cipher based on the configuration type.
func NewCipherFromConfig(cfg config.EncryptionConfig) (docvault.Cipher, error) {
	switch cfg.Type {
	case "aes-gcm", "":
		return NewAESGCMCipher(cfg), nil
	case "test":
		return NewTestCipher(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
