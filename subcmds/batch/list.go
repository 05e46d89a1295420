// Copyright (c) 2025 BVK Chaitanya

package batch

import (
	"context"
	"flag"
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
	return "Lists the batches"
}

func (c *List) run(ctx context.Context, args []string) error {
	resp, err := cmdutil.Post[api.BatchListResponse](ctx, &c.ClientFlags, api.BatchListPath, &api.BatchListRequest{})
	if err != nil {
		return err
	}
	cmdutil.PrintBatches(os.Stdout, resp.Batches)
	return nil
}
