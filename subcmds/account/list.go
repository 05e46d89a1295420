// Copyright (c) 2025 BVK Chaitanya

package account

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

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
	return "Lists the trading accounts"
}

func (c *List) run(ctx context.Context, args []string) error {
	resp, err := cmdutil.Post[api.AccountListResponse](ctx, &c.ClientFlags, api.AccountListPath, &api.AccountListRequest{})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "Name\tAddress\tProxy\tBatch\tID\t\n")
	for _, a := range resp.Accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", a.Name, a.Address, a.Proxy, a.Batch, a.ID)
	}
	tw.Flush()
	return nil
}
