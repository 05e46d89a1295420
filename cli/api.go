// Copyright (c) 2023 BVK Chaitanya

// Package cli dispatches command-line arguments to a tree of commands built
// on the standard library's flag.FlagSets.
//
// Commands are grouped into subcommands of arbitrary depth with
// CommandGroup. Flags of a parent command can appear anywhere after the
// parent's name on the command line.
//
// Command functions share the github.com/visvasity/cli signature, so the same
// function can serve as a command-line command and as a chat bot command that
// prints through cli.Stdout.
//
// Special top-level commands "help" and "flags" print the documentation
// collected through optional interfaces.
//
// # OPTIONAL INTERFACES
//
// Commands can implement `interface{ Synopsis() string }` to provide a short
// one-line description and `interface{ CommandHelp() string }` to provide a
// more detailed multi-line, multi-paragraph documentation.
//
// # EXAMPLE
//
//	type Close struct {
//		cmdutil.ClientFlags
//
//		batch string
//	}
//
//	func (c *Close) Command() (string, *flag.FlagSet, cli.CmdFunc) {
//		fset := flag.NewFlagSet("close", flag.ContinueOnError)
//		c.ClientFlags.SetFlags(fset)
//		fset.StringVar(&c.batch, "batch", "", "name or id of the batch")
//		return "close", fset, cli.CmdFunc(c.run)
//	}
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	vcli "github.com/visvasity/cli"
)

// CmdFunc defines the signature for command execution functions.
type CmdFunc = vcli.CmdFunc

// Command interface defines the requirements for Command implementations.
type Command interface {
	// Command returns the command name, its flags and its execution function.
	// Flags must not be nil. Execution function is nil for command groups.
	Command() (string, *flag.FlagSet, CmdFunc)
}

// CommandGroup groups a collection of commands under a parent command.
func CommandGroup(name, synopsis string, cmds ...Command) Command {
	return &cmdGroup{
		name:     name,
		synopsis: synopsis,
		flags:    flag.NewFlagSet(name, flag.ContinueOnError),
		subcmds:  cmds,
	}
}

// Run resolves the command named by args from cmds and runs it with the
// remaining arguments. Flags from flag.CommandLine are accepted anywhere
// before the resolved command's arguments. Help and flag listings are
// written to the context's cli.Stdout.
func Run(ctx context.Context, cmds []Command, args []string) error {
	if len(cmds) == 0 {
		return os.ErrInvalid
	}
	root := &cmdGroup{
		name:    commandLineName(),
		flags:   flag.CommandLine,
		subcmds: cmds,
	}
	if err := root.check(); err != nil {
		return err
	}

	r := newResolver(root)
	if err := r.resolve(args); err != nil {
		return err
	}

	stdout := vcli.Stdout(ctx)
	switch r.special {
	case "help":
		return printHelp(stdout, r.path)
	case "flags":
		return printFlags(stdout, r.path)
	}

	_, _, fn := r.last().Command()
	if fn == nil {
		return printHelp(stdout, r.path)
	}
	if err := fn(ctx, r.args); err != nil {
		return fmt.Errorf("%s: %w", usagePath(r.path), err)
	}
	return nil
}
