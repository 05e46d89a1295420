// Copyright (c) 2025 BVK Chaitanya

package account

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
)

type SetProxy struct {
	cmdutil.ClientFlags

	proxy string
}

func (c *SetProxy) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-proxy", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.proxy, "proxy", "", "proxy name or id; empty value removes the proxy")
	return "set-proxy", fset, cli.CmdFunc(c.run)
}

func (c *SetProxy) Synopsis() string {
	return "Changes the proxy of an account"
}

func (c *SetProxy) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (account name or id) argument: %w", os.ErrInvalid)
	}
	req := &api.AccountSetProxyRequest{Account: args[0], Proxy: c.proxy}
	resp, err := cmdutil.Post[api.AccountSetProxyResponse](ctx, &c.ClientFlags, api.AccountSetProxyPath, req)
	if err != nil {
		return err
	}
	proxy := resp.Account.Proxy
	if proxy == "" {
		proxy = "(direct)"
	}
	fmt.Printf("account %s uses proxy %s\n", resp.Account.Name, proxy)
	return nil
}
