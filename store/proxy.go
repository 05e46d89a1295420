// Copyright (c) 2025 BVK Chaitanya

package store

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/kvutil"
	"github.com/bvk/unitbot/namer"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
)

// ParseProxy parses a `name:host:port:username:password` line.
func ParseProxy(line string) (*gobs.Proxy, error) {
	fields := strings.Split(strings.TrimSpace(line), ":")
	if len(fields) != 5 {
		return nil, fmt.Errorf("wanted name:host:port:username:password: %w", os.ErrInvalid)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	port, err := strconv.Atoi(fields[2])
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid proxy port %q: %w", fields[2], os.ErrInvalid)
	}
	p := &gobs.Proxy{
		Name:     fields[0],
		Host:     fields[1],
		Port:     port,
		Username: fields[3],
		Password: fields[4],
	}
	if err := checkProxy(p); err != nil {
		return nil, err
	}
	return p, nil
}

func checkProxy(p *gobs.Proxy) error {
	if p.Name == "" {
		return fmt.Errorf("proxy name cannot be empty: %w", os.ErrInvalid)
	}
	if p.Host == "" {
		return fmt.Errorf("proxy host cannot be empty: %w", os.ErrInvalid)
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("invalid proxy port %d: %w", p.Port, os.ErrInvalid)
	}
	return nil
}

// ProxyURL returns the http proxy url for a proxy.
func ProxyURL(p *gobs.Proxy) *url.URL {
	u := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

func addProxy(ctx context.Context, rw kv.ReadWriter, p *gobs.Proxy) error {
	if err := checkProxy(p); err != nil {
		return err
	}
	p.ID = uuid.New().String()
	p.CreateTime = time.Now()
	if err := namer.SetName(ctx, rw, p.Name, p.ID, proxyTypename); err != nil {
		return err
	}
	return kvutil.Set(ctx, rw, path.Join(ProxiesKeyspace, p.ID), p)
}

func (s *Store) AddProxy(ctx context.Context, p *gobs.Proxy) (*gobs.Proxy, error) {
	if err := kv.WithReadWriter(ctx, s.db, func(ctx context.Context, rw kv.ReadWriter) error {
		return addProxy(ctx, rw, p)
	}); err != nil {
		return nil, fmt.Errorf("could not add proxy %q: %w", p.Name, err)
	}
	return p, nil
}

// ImportProxies adds proxies from newline separated
// `name:host:port:username:password` lines. Malformed lines and lines with
// names already in use are skipped.
func (s *Store) ImportProxies(ctx context.Context, text string) ([]*gobs.Proxy, error) {
	var added []*gobs.Proxy
	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, err := ParseProxy(line)
		if err != nil {
			slog.Warn("skipping malformed proxy line", "line", i+1, "err", err)
			continue
		}
		if _, err := s.AddProxy(ctx, p); err != nil {
			if ctx.Err() != nil {
				return added, context.Cause(ctx)
			}
			slog.Warn("skipping proxy line", "line", i+1, "name", p.Name, "err", err)
			continue
		}
		added = append(added, p)
	}
	return added, nil
}

func (s *Store) ListProxies(ctx context.Context) ([]*gobs.Proxy, error) {
	var proxies []*gobs.Proxy
	begin, end := kvutil.PathRange(ProxiesKeyspace)
	collect := func(ctx context.Context, r kv.Reader, k string, p *gobs.Proxy) error {
		proxies = append(proxies, p)
		return nil
	}
	if err := kvutil.AscendDB(ctx, s.db, begin, end, collect); err != nil {
		return nil, fmt.Errorf("could not list proxies: %w", err)
	}
	return proxies, nil
}

func getProxy(ctx context.Context, r kv.Reader, nameOrID string) (*gobs.Proxy, error) {
	id, err := namer.ResolveID(ctx, r, nameOrID, proxyTypename)
	if err != nil {
		return nil, fmt.Errorf("could not resolve proxy %q: %w", nameOrID, err)
	}
	return kvutil.Get[gobs.Proxy](ctx, r, path.Join(ProxiesKeyspace, id))
}

func (s *Store) GetProxy(ctx context.Context, nameOrID string) (p *gobs.Proxy, err error) {
	err = kv.WithReader(ctx, s.db, func(ctx context.Context, r kv.Reader) error {
		p, err = getProxy(ctx, r, nameOrID)
		return err
	})
	return p, err
}

// DeleteProxy removes the proxy. Accounts using the proxy fall back to the
// default network path.
func (s *Store) DeleteProxy(ctx context.Context, nameOrID string) error {
	return kv.WithReadWriter(ctx, s.db, func(ctx context.Context, rw kv.ReadWriter) error {
		p, err := getProxy(ctx, rw, nameOrID)
		if err != nil {
			return err
		}
		accounts, err := listAccounts(ctx, rw)
		if err != nil {
			return err
		}
		for _, a := range accounts {
			if a.ProxyID != p.ID {
				continue
			}
			a.ProxyID = ""
			if err := kvutil.Set(ctx, rw, path.Join(AccountsKeyspace, a.ID), a); err != nil {
				return fmt.Errorf("could not clear proxy on account %q: %w", a.Name, err)
			}
		}
		if err := namer.Delete(ctx, rw, p.ID); err != nil {
			return err
		}
		return rw.Delete(ctx, path.Join(ProxiesKeyspace, p.ID))
	})
}
