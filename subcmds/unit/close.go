// Copyright (c) 2025 BVK Chaitanya

package unit

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
)

type Close struct {
	cmdutil.ClientFlags

	batch string
}

func (c *Close) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("close", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.batch, "batch", "", "batch name or id")
	return "close", fset, cli.CmdFunc(c.run)
}

func (c *Close) Synopsis() string {
	return "Closes the positions of a unit in all accounts"
}

func (c *Close) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (asset) argument: %w", os.ErrInvalid)
	}
	req := &api.UnitCloseRequest{Batch: c.batch, Asset: args[0]}
	if _, err := cmdutil.Post[api.UnitCloseResponse](ctx, &c.ClientFlags, api.UnitClosePath, req); err != nil {
		return err
	}
	return nil
}
