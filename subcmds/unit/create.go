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
	"github.com/shopspring/decimal"
)

type Create struct {
	cmdutil.ClientFlags

	batch    string
	size     float64
	leverage int
	minutes  float64
}

func (c *Create) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("create", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.batch, "batch", "", "batch name or id")
	fset.Float64Var(&c.size, "size", 0, "nominal per-account size of the unit")
	fset.IntVar(&c.leverage, "leverage", 1, "leverage for the positions")
	fset.Float64Var(&c.minutes, "minutes", 0, "lifetime of the unit in minutes (default: batch setting)")
	return "create", fset, cli.CmdFunc(c.run)
}

func (c *Create) Synopsis() string {
	return "Opens a unit for an asset in all accounts of a batch"
}

func (c *Create) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (asset) argument: %w", os.ErrInvalid)
	}
	req := &api.UnitCreateRequest{
		Batch:    c.batch,
		Asset:    args[0],
		Size:     decimal.NewFromFloat(c.size),
		Leverage: c.leverage,
		Minutes:  decimal.NewFromFloat(c.minutes),
	}
	if _, err := cmdutil.Post[api.UnitCreateResponse](ctx, &c.ClientFlags, api.UnitCreatePath, req); err != nil {
		return err
	}
	return nil
}
