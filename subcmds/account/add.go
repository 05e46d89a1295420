// Copyright (c) 2025 BVK Chaitanya

package account

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
	"golang.org/x/term"
)

type Add struct {
	cmdutil.ClientFlags

	address string
	proxy   string
}

func (c *Add) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("add", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.address, "address", "", "hex address of the trading account")
	fset.StringVar(&c.proxy, "proxy", "", "optional proxy name or id for the account")
	return "add", fset, cli.CmdFunc(c.run)
}

func (c *Add) Synopsis() string {
	return "Adds a trading account; private key is read from the terminal"
}

func (c *Add) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (account name) argument: %w", os.ErrInvalid)
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("private key can only be read from a terminal")
	}
	fmt.Fprint(os.Stderr, "Private key: ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("could not read private key: %w", err)
	}

	req := &api.AccountAddRequest{
		Name:       args[0],
		Address:    c.address,
		PrivateKey: strings.TrimSpace(string(key)),
		Proxy:      c.proxy,
	}
	resp, err := cmdutil.Post[api.AccountAddResponse](ctx, &c.ClientFlags, api.AccountAddPath, req)
	if err != nil {
		return err
	}
	fmt.Printf("added account %s (%s) with id %s\n", resp.Account.Name, resp.Account.Address, resp.Account.ID)
	return nil
}
