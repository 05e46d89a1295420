// Copyright (c) 2025 BVK Chaitanya

package gobs

import "time"

type Proxy struct {
	ID   string
	Name string

	Host     string
	Port     int
	Username string
	Password string

	CreateTime time.Time
}

type Account struct {
	ID   string
	Name string

	// Address is the venue facing public address of the account.
	Address string

	// SealedKey holds the private key encrypted with the operator passphrase.
	SealedKey []byte

	// ProxyID is empty when account uses the default network path.
	ProxyID string

	// BatchID is non-empty when account is claimed by an open batch.
	BatchID string

	CreateTime time.Time
}

// KeyringData holds the parameters to re-derive the keyring key from the
// operator passphrase.
type KeyringData struct {
	Salt []byte

	// Check is a sealed value used to detect a wrong passphrase.
	Check []byte
}
