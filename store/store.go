// Copyright (c) 2025 BVK Chaitanya

// Package store persists proxies, accounts, batches, unit timings and batch
// events in a key-value database.
//
// Objects are saved as gobs under a keyspace per type with uuid keys. Human
// friendly names are unique across all object types and are resolved with
// the namer package.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/keyring"
	"github.com/bvk/unitbot/kvutil"
	"github.com/bvkgo/kv"
)

const (
	ProxiesKeyspace  = "/proxies/"
	AccountsKeyspace = "/accounts/"
	BatchesKeyspace  = "/batches/"
	TimingsKeyspace  = "/timings/"
	EventsKeyspace   = "/events/"

	KeyringKey = "/keyring"
)

const (
	proxyTypename   = "Proxy"
	accountTypename = "Account"
	batchTypename   = "Batch"
)

var ErrLocked = errors.New("store: keyring is locked")

type Store struct {
	db kv.Database

	mu      sync.Mutex
	keyring *keyring.Keyring
}

func New(db kv.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Database() kv.Database {
	return s.db
}

// Unlock derives the keyring from the passphrase. First call on a new
// database initializes the keyring with a random salt.
func (s *Store) Unlock(ctx context.Context, passphrase string) error {
	var k *keyring.Keyring
	update := func(data *gobs.KeyringData) (*gobs.KeyringData, error) {
		if data != nil {
			v, err := keyring.New(passphrase, data.Salt)
			if err != nil {
				return nil, err
			}
			if err := v.Verify(data.Check); err != nil {
				return nil, err
			}
			k = v
			return data, nil
		}
		salt, err := keyring.NewSalt()
		if err != nil {
			return nil, err
		}
		v, err := keyring.New(passphrase, salt)
		if err != nil {
			return nil, err
		}
		check, err := v.CheckValue()
		if err != nil {
			return nil, err
		}
		k = v
		return &gobs.KeyringData{Salt: salt, Check: check}, nil
	}
	if err := kvutil.UpdateDB(ctx, s.db, KeyringKey, update); err != nil {
		return fmt.Errorf("could not unlock keyring: %w", err)
	}

	s.mu.Lock()
	s.keyring = k
	s.mu.Unlock()
	return nil
}

func (s *Store) getKeyring() (*keyring.Keyring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keyring == nil {
		return nil, fmt.Errorf("%w: %w", ErrLocked, os.ErrPermission)
	}
	return s.keyring, nil
}
