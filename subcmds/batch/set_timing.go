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
	"github.com/shopspring/decimal"
)

type SetTiming struct {
	cmdutil.ClientFlags

	asset   string
	minutes float64
}

func (c *SetTiming) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-timing", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.asset, "asset", "", "asset of the unit")
	fset.Float64Var(&c.minutes, "minutes", 0, "new lifetime of the unit in minutes")
	return "set-timing", fset, cli.CmdFunc(c.run)
}

func (c *SetTiming) Synopsis() string {
	return "Changes the recreate timing of a unit"
}

func (c *SetTiming) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (batch name or id) argument: %w", os.ErrInvalid)
	}
	if c.minutes <= 0 {
		return fmt.Errorf("minutes must be positive: %w", os.ErrInvalid)
	}
	req := &api.BatchSetTimingRequest{
		Batch:   args[0],
		Asset:   c.asset,
		Minutes: decimal.NewFromFloat(c.minutes),
	}
	if _, err := cmdutil.Post[api.BatchSetTimingResponse](ctx, &c.ClientFlags, api.BatchSetTimingPath, req); err != nil {
		return err
	}
	return nil
}
