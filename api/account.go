// Copyright (c) 2025 BVK Chaitanya

package api

const (
	AccountAddPath      = "/account/add"
	AccountListPath     = "/account/list"
	AccountDeletePath   = "/account/delete"
	AccountSetProxyPath = "/account/set-proxy"
)

type AccountAddRequest struct {
	Name    string
	Address string

	// PrivateKey is the hex encoded API wallet key.
	PrivateKey string

	// Proxy is an optional proxy name or id.
	Proxy string
}

type AccountAddResponse struct {
	Account *AccountInfo
}

type AccountListRequest struct {
}

type AccountListResponse struct {
	Accounts []*AccountInfo
}

type AccountDeleteRequest struct {
	Account string
}

type AccountDeleteResponse struct {
}

// AccountSetProxyRequest changes the proxy of an account. Empty proxy makes
// the account use the default network path.
type AccountSetProxyRequest struct {
	Account string
	Proxy   string
}

type AccountSetProxyResponse struct {
	Account *AccountInfo
}
