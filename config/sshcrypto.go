package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// LoadSSHPrivateKey parses an unencrypted private key file into a signer.
func LoadSSHPrivateKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key %s: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key %s: %w", path, err)
	}
	return signer, nil
}

// LoadSSHPrivateKeyWithPassphrase parses a passphrase-protected private key
// file into a signer.
func LoadSSHPrivateKeyWithPassphrase(path string, passphrase []byte) (ssh.Signer, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key %s: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKeyWithPassphrase(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key %s: %w", path, err)
	}
	return signer, nil
}

// IsSSHKeyEncrypted reports whether the key file requires a passphrase.
func IsSSHKeyEncrypted(path string) (bool, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return false, fmt.Errorf("failed to read SSH key %s: %w", path, err)
	}
	_, err = ssh.ParsePrivateKey(data)
	if err == nil {
		return false, nil
	}
	if _, ok := err.(*ssh.PassphraseMissingError); ok {
		return true, nil
	}
	if strings.Contains(err.Error(), "passphrase") || strings.Contains(err.Error(), "encrypted") {
		return true, nil
	}
	return false, err
}

// FindSSHKeys returns candidate private key paths under ~/.ssh, most
// preferred first.
func FindSSHKeys() []string {
	home, err := GetHomeDir()
	if err != nil {
		return nil
	}
	sshDir := filepath.Join(home, ".ssh")

	preferred := []string{"blackia_ed25519", "id_ed25519", "id_rsa", "id_ecdsa"}

	var keys []string
	seen := make(map[string]bool)
	for _, name := range preferred {
		path := filepath.Join(sshDir, name)
		if FileExists(path) {
			keys = append(keys, path)
			seen[name] = true
		}
	}

	entries, err := os.ReadDir(sshDir)
	if err != nil {
		return keys
	}
	for _, entry := range entries {
		if entry.IsDir() || seen[entry.Name()] {
			continue
		}
		path := filepath.Join(sshDir, entry.Name())
		if isPrivateKey(path) {
			keys = append(keys, path)
		}
	}
	return keys
}

func isPrivateKey(path string) bool {
	if strings.HasSuffix(path, ".pub") {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 64)
	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return false
	}
	return strings.HasPrefix(string(buf[:n]), "-----BEGIN") &&
		strings.Contains(string(buf[:n]), "PRIVATE KEY")
}
