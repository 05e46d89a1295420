// Copyright (c) 2025 BVK Chaitanya

package proxy

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
)

type Add struct {
	cmdutil.ClientFlags

	host     string
	port     int
	username string
	password string
}

func (c *Add) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("add", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.host, "host", "", "proxy host name or ip address")
	fset.IntVar(&c.port, "port", 0, "proxy port number")
	fset.StringVar(&c.username, "username", "", "proxy user name")
	fset.StringVar(&c.password, "password", "", "proxy password")
	return "add", fset, cli.CmdFunc(c.run)
}

func (c *Add) Synopsis() string {
	return "Adds a named http proxy"
}

func (c *Add) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (proxy name) argument: %w", os.ErrInvalid)
	}
	req := &api.ProxyAddRequest{
		Name:     args[0],
		Host:     c.host,
		Port:     c.port,
		Username: c.username,
		Password: c.password,
	}
	resp, err := cmdutil.Post[api.ProxyAddResponse](ctx, &c.ClientFlags, api.ProxyAddPath, req)
	if err != nil {
		return err
	}
	fmt.Printf("added proxy %s with id %s\n", resp.Proxy.Name, resp.Proxy.ID)
	return nil
}
