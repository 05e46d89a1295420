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

type Delete struct {
	cmdutil.ClientFlags
}

func (c *Delete) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("delete", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "delete", fset, cli.CmdFunc(c.run)
}

func (c *Delete) Synopsis() string {
	return "Deletes an account that is not used by any batch"
}

func (c *Delete) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (account name or id) argument: %w", os.ErrInvalid)
	}
	req := &api.AccountDeleteRequest{Account: args[0]}
	if _, err := cmdutil.Post[api.AccountDeleteResponse](ctx, &c.ClientFlags, api.AccountDeletePath, req); err != nil {
		return err
	}
	return nil
}
