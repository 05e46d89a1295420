// Copyright (c) 2025 BVK Chaitanya

package internal

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

var (
	MainnetURL = url.URL{
		Scheme: "https",
		Host:   "api.hyperliquid.xyz",
	}

	TestnetURL = url.URL{
		Scheme: "https",
		Host:   "api.hyperliquid-testnet.xyz",
	}
)

type Options struct {
	// RestURL is the base URL for the /info and /exchange endpoints. Defaults
	// to the mainnet or testnet url.
	RestURL string

	// Testnet selects the testnet url and the testnet signing source.
	Testnet bool

	// ProxyURL is an optional http proxy for all requests.
	ProxyURL *url.URL

	HttpClientTimeout time.Duration

	// RequestsPerSecond and RequestBurst limit the request rate of a client.
	RequestsPerSecond float64
	RequestBurst      int

	// MaxRetries limits the number of retries for throttled or unavailable
	// responses.
	MaxRetries int
}

func (v *Options) setDefaults() {
	if v.RestURL == "" {
		if v.Testnet {
			v.RestURL = TestnetURL.String()
		} else {
			v.RestURL = MainnetURL.String()
		}
	}
	if v.HttpClientTimeout == 0 {
		v.HttpClientTimeout = 30 * time.Second
	}
	if v.RequestsPerSecond == 0 {
		v.RequestsPerSecond = 10
	}
	if v.RequestBurst == 0 {
		v.RequestBurst = 20
	}
	if v.MaxRetries == 0 {
		v.MaxRetries = 5
	}
}

// Check validates the options.
func (v *Options) Check() error {
	if _, err := url.Parse(v.RestURL); err != nil {
		return fmt.Errorf("invalid rest url %q: %w", v.RestURL, err)
	}
	if v.RequestsPerSecond < 0 || v.RequestBurst < 0 {
		return fmt.Errorf("request rate limits cannot be negative: %w", os.ErrInvalid)
	}
	if v.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
