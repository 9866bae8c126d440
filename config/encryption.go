package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// EncryptionMethod selects how credentials are stored at rest.
type EncryptionMethod string

const (
	EncryptionNone   EncryptionMethod = "none"
	EncryptionSSHKey EncryptionMethod = "ssh_key"
)

// Signing a fixed message with the user's SSH key yields a deterministic
// secret; its hash becomes the AES key. Changing this string invalidates all
// stored credentials.
const keyDerivationMessage = "blackia-credentials-key-derivation-v1"

// EncryptionManager encrypts and decrypts credential payloads with
// AES-256-GCM, keyed from the user's SSH key.
type EncryptionManager struct {
	method EncryptionMethod
	key    []byte
}

// NewEncryptionManager returns an uninitialized manager for the given method.
func NewEncryptionManager(method EncryptionMethod) *EncryptionManager {
	return &EncryptionManager{method: method}
}

// Method returns the configured encryption method.
func (m *EncryptionManager) Method() EncryptionMethod {
	return m.method
}

// Initialize derives the AES key from the signer. Required before Encrypt or
// Decrypt when the method is EncryptionSSHKey.
func (m *EncryptionManager) Initialize(signer ssh.Signer) error {
	if m.method != EncryptionSSHKey {
		return nil
	}
	if signer == nil {
		return fmt.Errorf("ssh_key encryption requires a signer")
	}
	key, err := DeriveAESKeyFromSSH(signer)
	if err != nil {
		return fmt.Errorf("failed to derive encryption key: %w", err)
	}
	m.key = key
	return nil
}

// Encrypt returns base64(nonce || ciphertext). With EncryptionNone the
// plaintext is returned unchanged.
func (m *EncryptionManager) Encrypt(plaintext []byte) (string, error) {
	if m.method == EncryptionNone {
		return string(plaintext), nil
	}
	if m.key == nil {
		return "", fmt.Errorf("encryption manager not initialized")
	}
	ciphertext, err := encryptAESGCM(m.key, plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func (m *EncryptionManager) Decrypt(encoded string) ([]byte, error) {
	if m.method == EncryptionNone {
		return []byte(encoded), nil
	}
	if m.key == nil {
		return nil, fmt.Errorf("encryption manager not initialized")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid encrypted payload: %w", err)
	}
	return decryptAESGCM(m.key, ciphertext)
}

// DeriveAESKeyFromSSH derives a 32-byte AES key by signing a fixed message
// with the SSH key and hashing the signature blob. Deterministic for
// deterministic signature schemes (ed25519, RSA).
func DeriveAESKeyFromSSH(signer ssh.Signer) ([]byte, error) {
	sig, err := signer.Sign(rand.Reader, []byte(keyDerivationMessage))
	if err != nil {
		return nil, fmt.Errorf("failed to sign derivation message: %w", err)
	}
	key := sha256.Sum256(sig.Blob)
	return key[:], nil
}

func encryptAESGCM(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
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
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptAESGCM(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted payload too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
