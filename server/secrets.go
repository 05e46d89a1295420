// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/bvk/unitbot/pushover"
	"github.com/bvk/unitbot/telegram"
)

// Secrets holds the messenger credentials. Venue keys are kept sealed in the
// database instead.
type Secrets struct {
	Pushover *pushover.Keys    `json:"pushover"`
	Telegram *telegram.Secrets `json:"telegram"`
}

// SecretsFromFile loads the secrets file. A missing file is not an error
// and returns empty secrets.
func SecretsFromFile(fpath string) (*Secrets, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return new(Secrets), nil
		}
		return nil, err
	}
	s := new(Secrets)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

func (v *Secrets) Check() error {
	if v.Telegram != nil {
		if err := v.Telegram.Check(); err != nil {
			return err
		}
	}
	if v.Pushover != nil {
		if err := v.Pushover.Check(); err != nil {
			return err
		}
	}
	return nil
}
