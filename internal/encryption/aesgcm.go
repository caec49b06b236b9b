package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"docvault/internal/config"
	"docvault/internal/docvault"
)

// DefaultIterations is the PBKDF2 iteration count used when the config does
// not set one.
const DefaultIterations = 210000

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

var (
	// ErrEmptyPassword is returned when an empty password is supplied.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrEmptyInput is returned when there is nothing to encrypt or decrypt.
	ErrEmptyInput = errors.New("input must not be empty")
	// ErrDecrypt is returned when authentication fails during decryption,
	// which means a wrong password or corrupted ciphertext.
	ErrDecrypt = errors.New("decryption failed: wrong password or corrupted data")
)

// AESGCMCipher implements docvault.Cipher using AES-256-GCM with a key
// derived from the password via PBKDF2-SHA-256. Every Encrypt call draws a
// fresh random salt and nonce, so encrypting the same plaintext twice
// produces different ciphertexts.
type AESGCMCipher struct {
	iterations int
}

var _ docvault.Cipher = (*AESGCMCipher)(nil)

// NewAESGCMCipher creates a new AESGCMCipher from configuration.
func NewAESGCMCipher(cfg config.EncryptionConfig) *AESGCMCipher {
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &AESGCMCipher{iterations: iterations}
}

func (c *AESGCMCipher) Encrypt(plaintext, password []byte) (*docvault.Sealed, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(plaintext) == 0 {
		return nil, ErrEmptyInput
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	aead, err := c.aead(password, salt)
	if err != nil {
		return nil, err
	}

	return &docvault.Sealed{
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
		Salt:       salt,
		IV:         nonce,
	}, nil
}

func (c *AESGCMCipher) Decrypt(ciphertext, password, salt, iv []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(ciphertext) == 0 {
		return nil, ErrEmptyInput
	}
	if len(salt) != saltSize {
		return nil, fmt.Errorf("invalid salt length: %d", len(salt))
	}
	if len(iv) != nonceSize {
		return nil, fmt.Errorf("invalid iv length: %d", len(iv))
	}

	aead, err := c.aead(password, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// aead derives the AES-256 key for the password and salt and wraps it in GCM.
func (c *AESGCMCipher) aead(password, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(password, salt, c.iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return aead, nil
}
