package docvault

// Sealed is the product of encrypting a plaintext: the ciphertext plus the
// non-secret parameters needed to decrypt it again. Salt and IV are raw
// bytes; callers base64-encode them before storing them in document
// metadata.
type Sealed struct {
	Ciphertext []byte
	Salt       []byte
	IV         []byte
}

// Cipher encrypts and decrypts document content with a password-derived
// key. The persistence layer never sees plaintext or passwords; callers
// encrypt before AddDocument and decrypt after GetDocument.
//
// Implementations must fail with a distinguishable error when the password
// is empty, when the input is empty, and when decryption authentication
// fails (wrong password or tampered ciphertext). Decrypt never returns
// corrupted plaintext silently.
type Cipher interface {
	Encrypt(plaintext, password []byte) (*Sealed, error)
	Decrypt(ciphertext, password, salt, iv []byte) ([]byte, error)
}
