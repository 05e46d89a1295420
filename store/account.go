// Copyright (c) 2025 BVK Chaitanya

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/bvk/unitbot/exchange"
	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/kvutil"
	"github.com/bvk/unitbot/namer"
	"github.com/bvkgo/kv"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

func checkPrivateKey(s string) error {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if _, err := crypto.HexToECDSA(s); err != nil {
		return fmt.Errorf("invalid private key: %w", os.ErrInvalid)
	}
	return nil
}

// proxyInUse returns the name of the account that uses the proxy, if any.
func proxyInUse(ctx context.Context, r kv.Reader, proxyID, except string) (string, error) {
	accounts, err := listAccounts(ctx, r)
	if err != nil {
		return "", err
	}
	for _, a := range accounts {
		if a.ProxyID == proxyID && a.ID != except {
			return a.Name, nil
		}
	}
	return "", nil
}

// AddAccount saves a new account with the private key sealed by the keyring.
// Proxy is optional and can be a proxy name or id. A proxy can be used by at
// most one account.
func (s *Store) AddAccount(ctx context.Context, name, address, privateKey, proxy string) (*gobs.Account, error) {
	k, err := s.getKeyring()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("account name cannot be empty: %w", os.ErrInvalid)
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid account address %q: %w", address, os.ErrInvalid)
	}
	if err := checkPrivateKey(privateKey); err != nil {
		return nil, err
	}
	sealed, err := k.Seal([]byte(privateKey))
	if err != nil {
		return nil, err
	}
	a := &gobs.Account{
		ID:         uuid.New().String(),
		Name:       name,
		Address:    common.HexToAddress(address).Hex(),
		SealedKey:  sealed,
		CreateTime: time.Now(),
	}
	if err := kv.WithReadWriter(ctx, s.db, func(ctx context.Context, rw kv.ReadWriter) error {
		if proxy != "" {
			p, err := getProxy(ctx, rw, proxy)
			if err != nil {
				return err
			}
			if user, err := proxyInUse(ctx, rw, p.ID, ""); err != nil {
				return err
			} else if user != "" {
				return fmt.Errorf("proxy %q is already used by account %q: %w", p.Name, user, os.ErrExist)
			}
			a.ProxyID = p.ID
		}
		if err := namer.SetName(ctx, rw, a.Name, a.ID, accountTypename); err != nil {
			return err
		}
		return kvutil.Set(ctx, rw, path.Join(AccountsKeyspace, a.ID), a)
	}); err != nil {
		return nil, fmt.Errorf("could not add account %q: %w", name, err)
	}
	return a, nil
}

func listAccounts(ctx context.Context, r kv.Reader) ([]*gobs.Account, error) {
	var accounts []*gobs.Account
	begin, end := kvutil.PathRange(AccountsKeyspace)
	collect := func(ctx context.Context, r kv.Reader, k string, a *gobs.Account) error {
		accounts = append(accounts, a)
		return nil
	}
	if err := kvutil.Ascend(ctx, r, begin, end, collect); err != nil {
		return nil, fmt.Errorf("could not list accounts: %w", err)
	}
	return accounts, nil
}

func (s *Store) ListAccounts(ctx context.Context) (accounts []*gobs.Account, err error) {
	err = kv.WithReader(ctx, s.db, func(ctx context.Context, r kv.Reader) error {
		accounts, err = listAccounts(ctx, r)
		return err
	})
	return accounts, err
}

func getAccount(ctx context.Context, r kv.Reader, nameOrID string) (*gobs.Account, error) {
	id, err := namer.ResolveID(ctx, r, nameOrID, accountTypename)
	if err != nil {
		return nil, fmt.Errorf("could not resolve account %q: %w", nameOrID, err)
	}
	return kvutil.Get[gobs.Account](ctx, r, path.Join(AccountsKeyspace, id))
}

func (s *Store) GetAccount(ctx context.Context, nameOrID string) (a *gobs.Account, err error) {
	err = kv.WithReader(ctx, s.db, func(ctx context.Context, r kv.Reader) error {
		a, err = getAccount(ctx, r, nameOrID)
		return err
	})
	return a, err
}

// SetAccountProxy changes the proxy of an account. Empty proxy selects the
// default network path. Proxy can be changed while the account is used by a
// batch.
func (s *Store) SetAccountProxy(ctx context.Context, account, proxy string) (*gobs.Account, error) {
	var a *gobs.Account
	if err := kv.WithReadWriter(ctx, s.db, func(ctx context.Context, rw kv.ReadWriter) error {
		v, err := getAccount(ctx, rw, account)
		if err != nil {
			return err
		}
		v.ProxyID = ""
		if proxy != "" {
			p, err := getProxy(ctx, rw, proxy)
			if err != nil {
				return err
			}
			if user, err := proxyInUse(ctx, rw, p.ID, v.ID); err != nil {
				return err
			} else if user != "" {
				return fmt.Errorf("proxy %q is already used by account %q: %w", p.Name, user, os.ErrExist)
			}
			v.ProxyID = p.ID
		}
		a = v
		return kvutil.Set(ctx, rw, path.Join(AccountsKeyspace, v.ID), v)
	}); err != nil {
		return nil, fmt.Errorf("could not set proxy for account %q: %w", account, err)
	}
	return a, nil
}

// DeleteAccount removes an account that is not used by any batch.
func (s *Store) DeleteAccount(ctx context.Context, nameOrID string) error {
	return kv.WithReadWriter(ctx, s.db, func(ctx context.Context, rw kv.ReadWriter) error {
		a, err := getAccount(ctx, rw, nameOrID)
		if err != nil {
			return err
		}
		if a.BatchID != "" {
			return fmt.Errorf("account %q is used by batch %s: %w", a.Name, a.BatchID, os.ErrExist)
		}
		if err := namer.Delete(ctx, rw, a.ID); err != nil {
			return err
		}
		return rw.Delete(ctx, path.Join(AccountsKeyspace, a.ID))
	})
}

// OpenAccounts returns the venue accounts with unsealed private keys and
// proxy urls, in the same order as the input ids.
func (s *Store) OpenAccounts(ctx context.Context, ids []string) ([]*exchange.Account, error) {
	k, err := s.getKeyring()
	if err != nil {
		return nil, err
	}
	var accounts []*exchange.Account
	if err := kv.WithReader(ctx, s.db, func(ctx context.Context, r kv.Reader) error {
		for _, id := range ids {
			a, err := kvutil.Get[gobs.Account](ctx, r, path.Join(AccountsKeyspace, id))
			if err != nil {
				return fmt.Errorf("could not load account %s: %w", id, err)
			}
			key, err := k.Open(a.SealedKey)
			if err != nil {
				return fmt.Errorf("could not unseal key for account %q: %w", a.Name, err)
			}
			ea := &exchange.Account{
				ID:         a.ID,
				Name:       a.Name,
				Address:    a.Address,
				PrivateKey: string(key),
			}
			if a.ProxyID != "" {
				p, err := kvutil.Get[gobs.Proxy](ctx, r, path.Join(ProxiesKeyspace, a.ProxyID))
				if err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("could not load proxy for account %q: %w", a.Name, err)
				}
				if p != nil {
					ea.ProxyURL = ProxyURL(p)
				}
			}
			accounts = append(accounts, ea)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return accounts, nil
}
