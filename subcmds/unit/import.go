// Copyright (c) 2025 BVK Chaitanya

package unit

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
)

type Import struct {
	cmdutil.ClientFlags

	batch string
}

func (c *Import) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("import", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.batch, "batch", "", "batch name or id")
	return "import", fset, cli.CmdFunc(c.run)
}

func (c *Import) Synopsis() string {
	return "Creates units from a file with asset:size:leverage:minutes lines"
}

func (c *Import) CommandHelp() string {
	return `

Command "import" reads unit requests, one per line, in the format

    ASSET:SIZE:LEVERAGE:MINUTES

and creates the units in the background. Invalid lines are skipped. Use "batch
watch" or "batch events" to follow the progress.

`
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
	req := &api.UnitImportRequest{Batch: c.batch, Text: string(data)}
	resp, err := cmdutil.Post[api.UnitImportResponse](ctx, &c.ClientFlags, api.UnitImportPath, req)
	if err != nil {
		return err
	}
	fmt.Printf("creating units for %s\n", strings.Join(resp.Assets, ", "))
	return nil
}
