// Package crypto provides password-based encryption for archive blobs
// written by internal/sigstore. It has no knowledge of chunking,
// catalogs, or signatures; it only ever sees opaque byte slices.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	KeySize    = 32 // AES-256 requires 32 byte key
	SaltSize   = 32
	Iterations = 100000 // PBKDF2 iterations for key derivation
)

// EncryptionKey is a key derived from a passphrase, along with the salt
// needed to re-derive it later.
type EncryptionKey struct {
	Key  []byte
	Salt []byte
}

// DeriveKey derives an AES-256 key from passphrase via PBKDF2-HMAC-SHA256.
// Passing a nil salt generates a fresh one; passing the salt recorded
// alongside a previously encrypted blob re-derives the same key.
func DeriveKey(passphrase string, salt []byte) (*EncryptionKey, error) {
	if salt == nil {
		salt = make([]byte, SaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, err
		}
	}

	key := pbkdf2.Key([]byte(passphrase), salt, Iterations, KeySize, sha256.New)
	return &EncryptionKey{Key: key, Salt: salt}, nil
}

// EncryptBlob encrypts data with AES-256-GCM, prepending the nonce to the
// returned ciphertext.
func EncryptBlob(data []byte, key *EncryptionKey) ([]byte, error) {
	block, err := aes.NewCipher(key.Key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

// DecryptBlob reverses EncryptBlob.
func DecryptBlob(ciphertext []byte, key *EncryptionKey) ([]byte, error) {
	block, err := aes.NewCipher(key.Key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// HashPassphrase returns a deterministic SHA-256 hex fingerprint of a
// passphrase. Import does not use it: a wrong passphrase shows up there
// as a decryption failure.
func HashPassphrase(passphrase string) string {
	hash := sha256.Sum256([]byte(passphrase))
	return hex.EncodeToString(hash[:])
}
