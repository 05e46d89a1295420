// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
)

type Status struct {
	cmdutil.ClientFlags
}

func (c *Status) Synopsis() string {
	return "Status prints the batches and their units"
}

func (c *Status) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "status", fset, cli.CmdFunc(c.run)
}

func (c *Status) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	resp, err := cmdutil.Post[api.StatusResponse](ctx, &c.ClientFlags, api.StatusPath, &api.StatusRequest{})
	if err != nil {
		return err
	}
	fmt.Printf("Version: %s\n", resp.Version)
	fmt.Printf("Uptime: %s\n", resp.Uptime)

	for _, st := range resp.Batches {
		fmt.Println()
		fmt.Printf("Batch %s (%s)\n", st.Batch.Name, st.Batch.State)
		if st.Snapshot == nil || (len(st.Snapshot.Units) == 0 && len(st.Snapshot.Statuses) == 0) {
			fmt.Println("No units.")
		}
		cmdutil.PrintSnapshot(os.Stdout, st.Snapshot)
	}
	return nil
}
