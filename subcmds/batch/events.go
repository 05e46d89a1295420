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

type Events struct {
	cmdutil.ClientFlags

	period string
}

func (c *Events) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("events", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.period, "period", "today", "time period: all, today, yesterday, this-week, last-week, this-month, last-month or a duration (ex: 6h)")
	return "events", fset, cli.CmdFunc(c.run)
}

func (c *Events) Synopsis() string {
	return "Prints the saved events of a batch"
}

func (c *Events) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (batch name or id) argument: %w", os.ErrInvalid)
	}
	req := &api.BatchEventsRequest{Batch: args[0], Range: c.period}
	resp, err := cmdutil.Post[api.BatchEventsResponse](ctx, &c.ClientFlags, api.BatchEventsPath, req)
	if err != nil {
		return err
	}
	for _, e := range resp.Events {
		fmt.Println(cmdutil.FormatEvent(e))
	}
	return nil
}
