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

type Close struct {
	cmdutil.ClientFlags
}

func (c *Close) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("close", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "close", fset, cli.CmdFunc(c.run)
}

func (c *Close) Synopsis() string {
	return "Deletes a batch that has no units"
}

func (c *Close) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (batch name or id) argument: %w", os.ErrInvalid)
	}
	if _, err := cmdutil.Post[api.BatchCloseResponse](ctx, &c.ClientFlags, api.BatchClosePath, &api.BatchCloseRequest{Batch: args[0]}); err != nil {
		return err
	}
	return nil
}

type Pause struct {
	cmdutil.ClientFlags
}

func (c *Pause) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("pause", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "pause", fset, cli.CmdFunc(c.run)
}

func (c *Pause) Synopsis() string {
	return "Stops the automatic recreation of a batch's units"
}

func (c *Pause) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (batch name or id) argument: %w", os.ErrInvalid)
	}
	resp, err := cmdutil.Post[api.BatchPauseResponse](ctx, &c.ClientFlags, api.BatchPausePath, &api.BatchPauseRequest{Batch: args[0]})
	if err != nil {
		return err
	}
	fmt.Println(resp.FinalState)
	return nil
}

type Resume struct {
	cmdutil.ClientFlags
}

func (c *Resume) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("resume", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "resume", fset, cli.CmdFunc(c.run)
}

func (c *Resume) Synopsis() string {
	return "Resumes a paused batch"
}

func (c *Resume) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (batch name or id) argument: %w", os.ErrInvalid)
	}
	resp, err := cmdutil.Post[api.BatchResumeResponse](ctx, &c.ClientFlags, api.BatchResumePath, &api.BatchResumeRequest{Batch: args[0]})
	if err != nil {
		return err
	}
	fmt.Println(resp.FinalState)
	return nil
}
