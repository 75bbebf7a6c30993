package codec

import (
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of a derived document key.
const KeySize = chacha20poly1305.KeySize

// NonceSize is the size of the per-write nonce stored in the header of every
// sealed document.
const NonceSize = chacha20poly1305.NonceSizeX

var keyInfo = []byte("sealdoc document key v1")

// DeriveKey stretches arbitrary caller key material into a KeySize key with
// HKDF-SHA256. The same material always gives the same key.
func DeriveKey(material []byte) ([]byte, error) {
	if len(material) == 0 {
		return nil, ErrNoKey
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, nil, keyInfo), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Sealer performs authenticated encryption of document payloads with
// XChaCha20-Poly1305. A Sealer is safe for concurrent use.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a Sealer whose key is derived from the given material.
func NewSealer(material []byte) (*Sealer, error) {
	key, err := DeriveKey(material)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts and authenticates plaintext, also authenticating ad. The
// result is appended to dst. nonce must be NonceSize bytes and must never be
// reused with the same key.
func (s *Sealer) Seal(dst, nonce, plaintext, ad []byte) []byte {
	return s.aead.Seal(dst, nonce, plaintext, ad)
}

// Open reverses Seal. Any modification of the ciphertext, nonce, or ad, or use
// of a different key, gives ErrIntegrity.
func (s *Sealer) Open(nonce, ciphertext, ad []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes", ErrIntegrity, len(nonce))
	}
	plain, err := s.aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plain, nil
}

// Overhead is the number of bytes Seal adds to a plaintext.
func (s *Sealer) Overhead() int {
	return s.aead.Overhead()
}
