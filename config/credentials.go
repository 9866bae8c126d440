package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// credentialsFile is the on-disk shape of the credential store.
type credentialsFile struct {
	Encryption EncryptionMethod  `json:"encryption"`
	SSHKeyPath string            `json:"ssh_key_path,omitempty"`
	APIKeys    map[string]string `json:"api_keys"`
}

// CredentialStore persists provider API keys (web search, OpenAI-compatible
// backends) in the data directory, optionally encrypted with the user's SSH
// key.
type CredentialStore struct {
	method     EncryptionMethod
	sshKeyPath string
	manager    *EncryptionManager
	keys       map[string]string
}

// NewCredentialStore returns an empty store using the given method.
func NewCredentialStore(method EncryptionMethod) *CredentialStore {
	return &CredentialStore{
		method:  method,
		manager: NewEncryptionManager(method),
		keys:    make(map[string]string),
	}
}

func credentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.json")
}

// UseSSHKey selects the SSH key used for encryption and derives the AES key
// from it. The passphrase may be nil for unencrypted keys.
func (s *CredentialStore) UseSSHKey(path string, passphrase []byte) error {
	if s.method != EncryptionSSHKey {
		return fmt.Errorf("credential store is not using ssh_key encryption")
	}

	encrypted, err := IsSSHKeyEncrypted(path)
	if err != nil {
		return err
	}

	var signer ssh.Signer
	if encrypted {
		signer, err = LoadSSHPrivateKeyWithPassphrase(path, passphrase)
	} else {
		signer, err = LoadSSHPrivateKey(path)
	}
	if err != nil {
		return err
	}
	if err := s.manager.Initialize(signer); err != nil {
		return err
	}

	s.sshKeyPath = path
	return nil
}

// Get returns the stored API key for a provider id.
func (s *CredentialStore) Get(providerID string) (string, bool) {
	key, ok := s.keys[providerID]
	return key, ok
}

// Set stores the API key for a provider id.
func (s *CredentialStore) Set(providerID, apiKey string) {
	s.keys[providerID] = apiKey
}

// Delete removes the API key for a provider id.
func (s *CredentialStore) Delete(providerID string) {
	delete(s.keys, providerID)
}

// Load reads credentials from the data directory. A missing file leaves the
// store empty.
func (s *CredentialStore) Load(dataDir string) error {
	path := credentialsPath(dataDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read credentials: %w", err)
	}

	var file credentialsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse credentials: %w", err)
	}

	s.keys = make(map[string]string, len(file.APIKeys))
	for id, stored := range file.APIKeys {
		if file.Encryption == EncryptionSSHKey {
			plain, err := s.manager.Decrypt(stored)
			if err != nil {
				return fmt.Errorf("failed to decrypt credential %s: %w", id, err)
			}
			s.keys[id] = string(plain)
		} else {
			s.keys[id] = stored
		}
	}
	if file.SSHKeyPath != "" {
		s.sshKeyPath = file.SSHKeyPath
	}
	return nil
}

// Save writes credentials to the data directory with 0600.
func (s *CredentialStore) Save(dataDir string) error {
	file := credentialsFile{
		Encryption: s.method,
		SSHKeyPath: s.sshKeyPath,
		APIKeys:    make(map[string]string, len(s.keys)),
	}

	for id, key := range s.keys {
		if s.method == EncryptionSSHKey {
			encrypted, err := s.manager.Encrypt([]byte(key))
			if err != nil {
				return fmt.Errorf("failed to encrypt credential %s: %w", id, err)
			}
			file.APIKeys[id] = encrypted
		} else {
			file.APIKeys[id] = key
		}
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	if err := EnsureDir(dataDir); err != nil {
		return err
	}
	if err := os.WriteFile(credentialsPath(dataDir), data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}
