package testutil

import (
	"docvault/internal/docvault"
	"docvault/internal/encryption"
)

// NewTestCipher creates a new deterministic cipher for testing.
func NewTestCipher() docvault.Cipher {
	return encryption.NewTestCipher()
}
