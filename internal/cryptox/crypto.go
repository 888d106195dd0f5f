// Package cryptox seals byte payloads with a passphrase: an Argon2id key is
// derived from the passphrase and a random salt, and the payload is
// encrypted with AES-256-GCM.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	keySize         = 32
)

// ErrDecrypt is returned when a sealed payload cannot be opened, most often
// because of a wrong passphrase.
var ErrDecrypt = errors.New("unable to decrypt payload")

// Envelope is the JSON form of a sealed payload.
type Envelope struct {
	Version    int    `json:"encryption_version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// DeriveKey stretches a passphrase into an AES-256 key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

// Seal encrypts plaintext and returns the encoded Envelope.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	aesgcm, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return json.Marshal(Envelope{
		Version:    envelopeVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aesgcm.Seal(nil, nonce, plaintext, nil),
	})
}

// Open reverses Seal.
func Open(sealed, passphrase []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrDecrypt, env.Version)
	}

	aesgcm, err := newGCM(DeriveKey(passphrase, env.Salt))
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aesgcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce", ErrDecrypt)
	}

	plaintext, err := aesgcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// IsSealed reports whether data looks like an Envelope.
func IsSealed(data []byte) bool {
	var probe struct {
		Version int `json:"encryption_version"`
	}
	return json.Unmarshal(data, &probe) == nil && probe.Version > 0
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
