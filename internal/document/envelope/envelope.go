// Package envelope provides authenticated encryption for data at rest. Each
// purpose (documents, personal data) gets its own key derived from the master
// key, so ciphertext from one purpose never decrypts under another.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	domainerrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
)

// Purposes recognised by the key schedule. Using a purpose string outside this
// set is allowed but produces an unrelated key.
const (
	PurposeDocuments    = "documents"
	PurposePersonalData = "personal-data"
)

// Protector seals and opens byte payloads under a purpose-scoped key.
type Protector interface {
	Protect(purpose string, plaintext []byte) ([]byte, error)
	Unprotect(purpose string, ciphertext []byte) ([]byte, error)
}

const keySize = 32

// AESProtector implements Protector with AES-256-GCM. Per-purpose keys come
// from HKDF-SHA256 over the master key; the nonce is prepended to the
// ciphertext.
type AESProtector struct {
	masterKey []byte
}

// NewAESProtector validates the master key and returns a ready protector.
func NewAESProtector(masterKey []byte) (*AESProtector, error) {
	if len(masterKey) != keySize {
		return nil, domainerrors.Newf(domainerrors.CodeConfiguration, "encryption master key must be %d bytes, got %d", keySize, len(masterKey))
	}
	return &AESProtector{masterKey: append([]byte(nil), masterKey...)}, nil
}

func (p *AESProtector) aead(purpose string) (cipher.AEAD, error) {
	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, p.masterKey, nil, []byte("envelope:"+purpose))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "derive purpose key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "init cipher")
	}
	return cipher.NewGCM(block)
}

// Protect seals plaintext under the purpose key.
func (p *AESProtector) Protect(purpose string, plaintext []byte) ([]byte, error) {
	aead, err := p.aead(purpose)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate nonce")
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Unprotect opens ciphertext sealed by Protect with the same purpose.
// Tampered or cross-purpose ciphertext fails authentication.
func (p *AESProtector) Unprotect(purpose string, ciphertext []byte) ([]byte, error) {
	aead, err := p.aead(purpose)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, domainerrors.New(domainerrors.CodeSecurity, "ciphertext too short")
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeSecurity, "ciphertext authentication failed")
	}
	return plaintext, nil
}
