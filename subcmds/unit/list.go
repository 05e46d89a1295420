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

type List struct {
	cmdutil.ClientFlags
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) Synopsis() string {
	return "Lists the units of a batch"
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (batch name or id) argument: %w", os.ErrInvalid)
	}
	resp, err := cmdutil.Post[api.UnitListResponse](ctx, &c.ClientFlags, api.UnitListPath, &api.UnitListRequest{Batch: args[0]})
	if err != nil {
		return err
	}
	cmdutil.PrintSnapshot(os.Stdout, &api.Snapshot{Units: resp.Units})
	return nil
}
