// Copyright (c) 2025 BVK Chaitanya

package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bvk/unitbot/server"
)

// updateSecrets loads the secrets file from the data directory, applies the
// update and writes it back with owner-only permissions.
func updateSecrets(dataDir string, update func(*server.Secrets) error) error {
	if len(dataDir) == 0 {
		dataDir = filepath.Join(os.Getenv("HOME"), ".unitbot")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("could not create data directory %q: %w", dataDir, err)
	}
	secretsPath := filepath.Join(dataDir, "secrets.json")
	secrets, err := server.SecretsFromFile(secretsPath)
	if err != nil {
		return err
	}
	if err := update(secrets); err != nil {
		return err
	}
	if err := secrets.Check(); err != nil {
		return err
	}
	js, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(secretsPath, js, os.FileMode(0600)); err != nil {
		return err
	}
	fmt.Printf("updated %s; restart the daemon to use the new settings\n", secretsPath)
	return nil
}
