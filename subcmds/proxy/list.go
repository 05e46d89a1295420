// Copyright (c) 2025 BVK Chaitanya

package proxy

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
	return "Lists the proxies and the accounts using them"
}

func (c *List) run(ctx context.Context, args []string) error {
	resp, err := cmdutil.Post[api.ProxyListResponse](ctx, &c.ClientFlags, api.ProxyListPath, &api.ProxyListRequest{})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "Name\tHost\tPort\tUsername\tAccount\tID\t\n")
	for _, p := range resp.Proxies {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t\n", p.Name, p.Host, p.Port, p.Username, p.Account, p.ID)
	}
	tw.Flush()
	return nil
}
