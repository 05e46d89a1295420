// Copyright (c) 2025 BVK Chaitanya

package proxy

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
)

type Import struct {
	cmdutil.ClientFlags
}

func (c *Import) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("import", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "import", fset, cli.CmdFunc(c.run)
}

func (c *Import) Synopsis() string {
	return "Imports proxies from a file with name:host:port:username:password lines"
}

func (c *Import) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (file path or -) argument: %w", os.ErrInvalid)
	}
	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}
	req := &api.ProxyImportRequest{Text: string(data)}
	resp, err := cmdutil.Post[api.ProxyImportResponse](ctx, &c.ClientFlags, api.ProxyImportPath, req)
	if err != nil {
		return err
	}
	for _, p := range resp.Proxies {
		fmt.Printf("imported proxy %s (%s:%d)\n", p.Name, p.Host, p.Port)
	}
	return nil
}
