// Copyright (c) 2025 BVK Chaitanya

package batch

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
	"github.com/shopspring/decimal"
)

type Create struct {
	cmdutil.ClientFlags

	accounts     string
	minutes      float64
	smartBalance bool
}

func (c *Create) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("create", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.accounts, "accounts", "", "comma separated list of 2, 4 or 6 account names")
	fset.Float64Var(&c.minutes, "recreate-minutes", 60, "default lifetime of the units in minutes")
	fset.BoolVar(&c.smartBalance, "smart-balance", false, "when true, larger legs are placed on accounts with more balance")
	return "create", fset, cli.CmdFunc(c.run)
}

func (c *Create) Synopsis() string {
	return "Creates a batch of paired accounts and starts it"
}

func (c *Create) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (batch name) argument: %w", os.ErrInvalid)
	}
	var accounts []string
	for _, v := range strings.Split(c.accounts, ",") {
		if v = strings.TrimSpace(v); v != "" {
			accounts = append(accounts, v)
		}
	}
	req := &api.BatchCreateRequest{
		Name:              args[0],
		Accounts:          accounts,
		RecreateMinutes:   decimal.NewFromFloat(c.minutes),
		SmartBalanceUsage: c.smartBalance,
	}
	resp, err := cmdutil.Post[api.BatchCreateResponse](ctx, &c.ClientFlags, api.BatchCreatePath, req)
	if err != nil {
		return err
	}
	fmt.Printf("created batch %s with id %s (%s)\n", resp.Batch.Name, resp.Batch.ID, resp.Batch.State)
	return nil
}
