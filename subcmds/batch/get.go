// Copyright (c) 2025 BVK Chaitanya

package batch

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
)

type Get struct {
	cmdutil.ClientFlags
}

func (c *Get) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("get", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "get", fset, cli.CmdFunc(c.run)
}

func (c *Get) Synopsis() string {
	return "Prints a batch with its units and account values"
}

func (c *Get) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (batch name or id) argument: %w", os.ErrInvalid)
	}
	resp, err := cmdutil.Post[api.BatchGetResponse](ctx, &c.ClientFlags, api.BatchGetPath, &api.BatchGetRequest{Batch: args[0]})
	if err != nil {
		return err
	}
	cmdutil.PrintBatches(os.Stdout, []*api.BatchInfo{resp.Batch})
	fmt.Println()
	cmdutil.PrintSnapshot(os.Stdout, resp.Snapshot)
	return nil
}
