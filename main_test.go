package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"golang.org/x/crypto/ssh"

	"blackia/config"
)

func TestParseMentions(t *testing.T) {
	tests := []struct {
		name         string
		line         string
		wantMentions []string
		wantContent  string
	}{
		{"no mentions", "hello there", nil, "hello there"},
		{"single mention", "@coach how do I train?", []string{"coach"}, "how do I train?"},
		{"multiple mentions", "@coach @critic review this", []string{"coach", "critic"}, "review this"},
		{"mid-message at sign kept", "email me @ home", nil, "email me @ home"},
		{"mention only", "@coach", []string{"coach"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mentions, content := parseMentions(tt.line)
			if !reflect.DeepEqual(mentions, tt.wantMentions) {
				t.Errorf("mentions = %v, want %v", mentions, tt.wantMentions)
			}
			if content != tt.wantContent {
				t.Errorf("content = %q, want %q", content, tt.wantContent)
			}
		})
	}
}

func TestOpenCredentialsPlaintext(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}

	creds, err := openCredentials(cfg, dir)
	if err != nil {
		t.Fatalf("openCredentials() error = %v", err)
	}

	creds.Set("brave", "plain-key")
	if err := creds.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reopened, err := openCredentials(cfg, dir)
	if err != nil {
		t.Fatalf("openCredentials() reopen error = %v", err)
	}
	if got, ok := reopened.Get("brave"); !ok || got != "plain-key" {
		t.Errorf("Get(brave) = %q, %v", got, ok)
	}
}

func TestOpenCredentialsSSHKeyRoundtrip(t *testing.T) {
	dir := t.TempDir()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}
	keyPath := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Credentials: config.CredentialsConfig{
			Encryption: string(config.EncryptionSSHKey),
			SSHKeyPath: keyPath,
		},
	}

	creds, err := openCredentials(cfg, dir)
	if err != nil {
		t.Fatalf("openCredentials() error = %v", err)
	}
	creds.Set("brave", "sealed-key")
	if err := creds.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reopened, err := openCredentials(cfg, dir)
	if err != nil {
		t.Fatalf("openCredentials() reopen error = %v", err)
	}
	if got, ok := reopened.Get("brave"); !ok || got != "sealed-key" {
		t.Errorf("Get(brave) = %q, %v", got, ok)
	}
}
