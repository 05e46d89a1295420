// Copyright (c) 2025 BVK Chaitanya

// Package internal implements a minimal REST client for the Hyperliquid
// perpetuals /info and /exchange endpoints.
package internal

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var ErrExchange = errors.New("exchange rejected the request")

type Client struct {
	opts Options

	baseURL *url.URL

	client http.Client

	limiter *rate.Limiter

	mu        sync.Mutex
	lastNonce uint64
}

// New returns a new client instance. Each client uses its own http transport
// so that accounts behind different proxies don't share connections.
func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(opts.RestURL)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(opts.ProxyURL)
	}
	c := &Client{
		opts:    *opts,
		baseURL: baseURL,
		client: http.Client{
			Timeout:   opts.HttpClientTimeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.RequestBurst),
	}
	return c, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) IsTestnet() bool {
	return c.opts.Testnet
}

// NextNonce returns a millisecond timestamp that is strictly increasing for
// the client.
func (c *Client) NextNonce() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce := uint64(time.Now().UnixMilli())
	if nonce <= c.lastNonce {
		nonce = c.lastNonce + 1
	}
	c.lastNonce = nonce
	return nonce
}

func (c *Client) endpoint(p string) *url.URL {
	return &url.URL{
		Scheme: c.baseURL.Scheme,
		Host:   c.baseURL.Host,
		Path:   path.Join(c.baseURL.Path, p),
	}
}

func (c *Client) GetClearinghouseState(ctx context.Context, user string) (*ClearinghouseState, error) {
	req := &InfoRequest{Type: "clearinghouseState", User: user}
	resp := new(ClearinghouseState)
	if err := postJSON(ctx, c, c.endpoint("/info"), req, resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not get clearinghouse state", "user", user, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetMeta(ctx context.Context) (*Meta, error) {
	req := &InfoRequest{Type: "meta"}
	resp := new(Meta)
	if err := postJSON(ctx, c, c.endpoint("/info"), req, resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not get perpetuals metadata", "err", err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetAllMids(ctx context.Context) (map[string]string, error) {
	req := &InfoRequest{Type: "allMids"}
	resp := make(map[string]string)
	if err := postJSON(ctx, c, c.endpoint("/info"), req, &resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not get mid prices", "err", err)
		}
		return nil, err
	}
	return resp, nil
}

// PlaceOrders signs and submits an order action. Returns one status per
// order in the same order.
func (c *Client) PlaceOrders(ctx context.Context, key *ecdsa.PrivateKey, orders []*OrderWire) ([]*OrderStatus, error) {
	action := &OrderAction{
		Type:     "order",
		Orders:   orders,
		Grouping: "na",
	}
	data, err := c.exchange(ctx, key, action)
	if err != nil {
		return nil, err
	}
	resp := new(OrderResponse)
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("could not decode order response %s: %w", data, err)
	}
	if len(resp.Data.Statuses) != len(orders) {
		return nil, fmt.Errorf("wanted %d order statuses, got %d", len(orders), len(resp.Data.Statuses))
	}
	return resp.Data.Statuses, nil
}

func (c *Client) UpdateLeverage(ctx context.Context, key *ecdsa.PrivateKey, asset int, isCross bool, leverage int) error {
	action := &UpdateLeverageAction{
		Type:     "updateLeverage",
		Asset:    asset,
		IsCross:  isCross,
		Leverage: leverage,
	}
	if _, err := c.exchange(ctx, key, action); err != nil {
		return err
	}
	return nil
}

func (c *Client) exchange(ctx context.Context, key *ecdsa.PrivateKey, action any) (json.RawMessage, error) {
	nonce := c.NextNonce()
	sig, err := SignAction(key, action, nonce, c.opts.Testnet)
	if err != nil {
		return nil, err
	}
	req := &ExchangeRequest{
		Action:    action,
		Nonce:     nonce,
		Signature: sig,
	}
	resp := new(ExchangeResponse)
	addrURL := c.endpoint("/exchange")
	if err := postJSON(ctx, c, addrURL, req, resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not post exchange action", "url", addrURL, "err", err)
		}
		return nil, err
	}
	if resp.Status != "ok" {
		var msg string
		if err := json.Unmarshal(resp.Response, &msg); err != nil {
			msg = string(resp.Response)
		}
		return nil, fmt.Errorf("%w: %s", ErrExchange, msg)
	}
	return resp.Response, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	sctx, scancel := context.WithTimeout(ctx, d)
	<-sctx.Done()
	scancel()
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}

func postJSON[PT *T, T any](ctx context.Context, c *Client, addrURL *url.URL, request any, response PT) error {
	body, err := json.Marshal(request)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, addrURL.String(), bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("could not perform http post request: %w", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("could not read response body: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			if err := json.Unmarshal(data, response); err != nil {
				slog.Error("could not decode response to json", "url", addrURL, "response", string(data), "err", err)
				return err
			}
			return nil
		}

		slog.Warn("http post returned unsuccessful status code", "url", addrURL, "status-code", resp.StatusCode, "response", string(data))
		if attempt >= c.opts.MaxRetries {
			return fmt.Errorf("http POST returned %d after %d retries", resp.StatusCode, attempt)
		}

		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable:
			if err := sleep(ctx, time.Second); err != nil {
				return err
			}
			continue

		case http.StatusTooManyRequests, http.StatusTeapot:
			timeout := time.Second
			if x := resp.Header.Get("Retry-After"); len(x) != 0 {
				if v, err := strconv.Atoi(x); err == nil {
					timeout = time.Duration(v) * time.Second
				}
			}
			if err := sleep(ctx, timeout); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("http POST returned %d: %w", resp.StatusCode, os.ErrNotExist)
		}
		return fmt.Errorf("http POST returned %d: %s", resp.StatusCode, data)
	}
}
