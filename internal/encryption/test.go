package encryption

import (
	"bytes"
	"crypto/sha256"

	"docvault/internal/docvault"
)

// testHeader is prepended to data by TestCipher to make encrypted output
// clearly different from plaintext while remaining deterministic and reversible.
var testHeader = []byte("DVENC\x00\x00\x00")

// Fixed salt and nonce returned by TestCipher so callers that persist them
// exercise the same round-trip paths as with the real cipher.
var (
	testSalt = []byte("0123456789abcdef")
	testIV   = []byte("0123456789ab")
)

// TestCipher is a simple, deterministic cipher for testing. It prepends a
// fixed 8-byte header and a password digest during encryption and strips both
// during decryption. This ensures encrypted output differs from plaintext and
// wrong passwords still fail, while skipping the key derivation cost.
type TestCipher struct{}

var _ docvault.Cipher = (*TestCipher)(nil)

// NewTestCipher creates a new TestCipher.
func NewTestCipher() *TestCipher {
	return &TestCipher{}
}

func (c *TestCipher) Encrypt(plaintext, password []byte) (*docvault.Sealed, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(plaintext) == 0 {
		return nil, ErrEmptyInput
	}

	digest := sha256.Sum256(password)
	ciphertext := make([]byte, 0, len(testHeader)+len(digest)+len(plaintext))
	ciphertext = append(ciphertext, testHeader...)
	ciphertext = append(ciphertext, digest[:]...)
	ciphertext = append(ciphertext, plaintext...)

	return &docvault.Sealed{
		Ciphertext: ciphertext,
		Salt:       append([]byte(nil), testSalt...),
		IV:         append([]byte(nil), testIV...),
	}, nil
}

func (c *TestCipher) Decrypt(ciphertext, password, salt, iv []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(ciphertext) == 0 {
		return nil, ErrEmptyInput
	}
	if len(ciphertext) < len(testHeader)+sha256.Size {
		return nil, ErrDecrypt
	}
	if !bytes.Equal(ciphertext[:len(testHeader)], testHeader) {
		return nil, ErrDecrypt
	}

	digest := sha256.Sum256(password)
	stored := ciphertext[len(testHeader) : len(testHeader)+sha256.Size]
	if !bytes.Equal(stored, digest[:]) {
		return nil, ErrDecrypt
	}

	plaintext := ciphertext[len(testHeader)+sha256.Size:]
	return append([]byte(nil), plaintext...), nil
}
