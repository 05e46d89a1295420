// Copyright (c) 2025 BVK Chaitanya

package proxy

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
)

type Delete struct {
	cmdutil.ClientFlags
}

func (c *Delete) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("delete", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "delete", fset, cli.CmdFunc(c.run)
}

func (c *Delete) Synopsis() string {
	return "Deletes a proxy; the account using it falls back to a direct connection"
}

func (c *Delete) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (proxy name or id) argument: %w", os.ErrInvalid)
	}
	req := &api.ProxyDeleteRequest{Proxy: args[0]}
	if _, err := cmdutil.Post[api.ProxyDeleteResponse](ctx, &c.ClientFlags, api.ProxyDeletePath, req); err != nil {
		return err
	}
	return nil
}
