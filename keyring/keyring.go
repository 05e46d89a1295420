// Copyright (c) 2025 BVK Chaitanya

// Package keyring seals account private keys with a passphrase derived key.
//
// Keys are derived with argon2id from the operator passphrase and a random
// salt that is stored next to the sealed data. Sealed values use nacl
// secretbox with a random nonce prefix.
package keyring

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	SaltSize  = 16
	nonceSize = 24
)

var ErrBadPassphrase = errors.New("keyring: wrong passphrase or corrupted data")

// checkText is sealed and stored with the salt to detect a wrong passphrase
// before any account key is used.
var checkText = []byte("unitbot keyring check")

type Keyring struct {
	key [32]byte
}

// NewSalt returns a random salt for a new keyring.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("could not read random salt: %w", err)
	}
	return salt, nil
}

// New derives the keyring key from the passphrase and salt.
func New(passphrase string, salt []byte) (*Keyring, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("passphrase cannot be empty: %w", os.ErrInvalid)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes: %w", SaltSize, os.ErrInvalid)
	}
	k := new(Keyring)
	copy(k.key[:], argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32))
	return k, nil
}

func (k *Keyring) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("could not read random nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &k.key), nil
}

func (k *Keyring) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrBadPassphrase
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &k.key)
	if !ok {
		return nil, ErrBadPassphrase
	}
	return plain, nil
}

// CheckValue returns a sealed value that Verify accepts only with the same
// passphrase and salt.
func (k *Keyring) CheckValue() ([]byte, error) {
	return k.Seal(checkText)
}

func (k *Keyring) Verify(check []byte) error {
	plain, err := k.Open(check)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(plain, checkText) != 1 {
		return ErrBadPassphrase
	}
	return nil
}
