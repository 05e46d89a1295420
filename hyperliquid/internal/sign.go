// Copyright (c) 2025 BVK Chaitanya

package internal

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	domainTypeHash = crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	agentTypeHash  = crypto.Keccak256([]byte("Agent(string source,bytes32 connectionId)"))

	// Exchange actions are signed as a phantom agent on this fixed domain for
	// both mainnet and testnet.
	exchangeDomainSeparator = crypto.Keccak256(
		domainTypeHash,
		crypto.Keccak256([]byte("Exchange")),
		crypto.Keccak256([]byte("1")),
		common.LeftPadBytes(big.NewInt(1337).Bytes(), 32),
		common.LeftPadBytes(common.Address{}.Bytes(), 32),
	)
)

// ActionHash returns the connection id for an action: keccak256 of the
// msgpack encoded action followed by the nonce and a zero byte for the
// absence of a vault address.
func ActionHash(action any, nonce uint64) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(action); err != nil {
		return nil, fmt.Errorf("could not msgpack encode the action: %w", err)
	}
	buf.Write(binary.BigEndian.AppendUint64(nil, nonce))
	buf.WriteByte(0x00)
	return crypto.Keccak256(buf.Bytes()), nil
}

// AgentDigest returns the EIP-712 digest of the phantom agent for a
// connection id.
func AgentDigest(connectionID []byte, testnet bool) []byte {
	source := "a"
	if testnet {
		source = "b"
	}
	structHash := crypto.Keccak256(
		agentTypeHash,
		crypto.Keccak256([]byte(source)),
		common.LeftPadBytes(connectionID, 32),
	)
	return crypto.Keccak256([]byte{0x19, 0x01}, exchangeDomainSeparator, structHash)
}

// SignAction signs an exchange action with the account's private key.
func SignAction(key *ecdsa.PrivateKey, action any, nonce uint64, testnet bool) (*Signature, error) {
	connectionID, err := ActionHash(action, nonce)
	if err != nil {
		return nil, err
	}
	digest := AgentDigest(connectionID, testnet)
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("could not sign the action: %w", err)
	}
	return &Signature{
		R: hexutil.EncodeBig(new(big.Int).SetBytes(sig[:32])),
		S: hexutil.EncodeBig(new(big.Int).SetBytes(sig[32:64])),
		V: int(sig[64]) + 27,
	}, nil
}

// ParsePrivateKey parses a hex encoded private key with or without the 0x
// prefix.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}
	return key, nil
}

// KeyAddress returns the hex address for a private key.
func KeyAddress(key *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}
