// Package secrets provides authenticated encryption for credentials at
// rest. Account usernames, passwords, and endpoint details are sealed into
// a single ciphertext blob before they reach the database and opened again
// on load.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

const keySize = 32 // AES-256

var (
	ErrInvalidKeySize     = errors.New("secrets: encryption key must be 32 bytes")
	ErrCiphertextTooShort = errors.New("secrets: ciphertext too short")
	ErrDecryptFailed      = errors.New("secrets: decryption failed")
)

// Encryptor seals and opens sensitive byte blobs.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AES implements Encryptor using AES-256-GCM. Ciphertexts are
// base64(nonce || sealed) so they can live in a text column.
type AES struct {
	key []byte
}

// NewAES creates an AES-256-GCM encryptor. The key must be exactly 32 bytes.
func NewAES(key []byte) (*AES, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKeySize
	}
	return &AES{key: key}, nil
}

// Encrypt seals plaintext with a random nonce and returns base64 ciphertext.
func (e *AES) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

// Decrypt opens base64 ciphertext produced by Encrypt. Tampered or
// wrong-key input yields ErrDecryptFailed.
func (e *AES) Decrypt(ciphertext []byte) ([]byte, error) {
	decoded, err := base64.StdEncoding.AppendDecode(nil, ciphertext)
	if err != nil {
		return nil, errors.Join(ErrDecryptFailed, err)
	}

	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	if len(decoded) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}

	nonce, sealed := decoded[:gcm.NonceSize()], decoded[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Join(ErrDecryptFailed, err)
	}
	return plaintext, nil
}

func (e *AES) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// GenerateKey returns a fresh random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncodeKey encodes a key as base64 for storage in an environment variable.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKey decodes a base64 key and validates its length.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(key) != keySize {
		return nil, ErrInvalidKeySize
	}
	return key, nil
}
