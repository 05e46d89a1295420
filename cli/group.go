// Copyright (c) 2023 BVK Chaitanya

package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type cmdGroup struct {
	name     string
	synopsis string
	flags    *flag.FlagSet
	subcmds  []Command
}

var specialCmds = map[string]string{
	"help":  "describe subcommands and flags",
	"flags": "describe all known flags",
}

func (cg *cmdGroup) Command() (string, *flag.FlagSet, CmdFunc) {
	return cg.name, cg.flags, nil
}

// check verifies that every command in the tree has a unique name among its
// siblings and a non-nil FlagSet.
func (cg *cmdGroup) check() error {
	seen := make(map[string]bool)
	for _, c := range cg.subcmds {
		name, fs, _ := c.Command()
		if len(name) == 0 || fs == nil {
			return fmt.Errorf("command %q in group %q needs a name and flags: %w", name, cg.name, os.ErrInvalid)
		}
		if seen[name] {
			return fmt.Errorf("command %q is defined twice in group %q: %w", name, cg.name, os.ErrExist)
		}
		seen[name] = true
		if sub, ok := c.(*cmdGroup); ok {
			if err := sub.check(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (cg *cmdGroup) lookup(name string) (Command, bool) {
	for _, c := range cg.subcmds {
		if n, _, _ := c.Command(); n == name {
			return c, true
		}
	}
	return nil, false
}

func commandLineName() string {
	_, name := filepath.Split(flag.CommandLine.Name())
	return name
}

// resolver walks the command tree along the command-line arguments.
type resolver struct {
	// path holds the commands from the root to the resolved command.
	path []Command

	// fsets holds the FlagSets of the commands in the path.
	fsets []*flag.FlagSet

	// group is the innermost command group that can still resolve subcommand
	// names. It is nil once a leaf command is resolved.
	group *cmdGroup

	// special is the special command named in place of the first subcommand.
	special string

	// args holds the arguments for the resolved command.
	args []string
}

func newResolver(root *cmdGroup) *resolver {
	return &resolver{
		path:  []Command{root},
		fsets: []*flag.FlagSet{root.flags},
		group: root,
	}
}

func (r *resolver) last() Command {
	return r.path[len(r.path)-1]
}

// findFlag looks for a flag in the resolved commands, innermost first.
func (r *resolver) findFlag(name string) *flag.Flag {
	for i := len(r.fsets) - 1; i >= 0; i-- {
		if f := r.fsets[i].Lookup(name); f != nil {
			return f
		}
	}
	return nil
}

func (r *resolver) resolve(args []string) error {
	for i := 0; i < len(args); i++ {
		s := args[i]
		if s == "--" {
			r.args = args[i+1:]
			return nil
		}
		if len(s) < 2 || s[0] != '-' {
			if r.group == nil {
				r.args = args[i:]
				return nil
			}
			if err := r.enter(s); err != nil {
				return err
			}
			continue
		}
		next, err := r.setFlag(args, i)
		if err != nil {
			return err
		}
		i = next
	}
	return nil
}

// enter resolves a subcommand name in the current group.
func (r *resolver) enter(name string) error {
	sub, ok := r.group.lookup(name)
	if !ok {
		if _, ok := specialCmds[name]; ok && len(r.path) == 1 && r.special == "" {
			r.special = name
			return nil
		}
		return fmt.Errorf("command not defined: %s", name)
	}
	_, fs, _ := sub.Command()
	r.path = append(r.path, sub)
	r.fsets = append(r.fsets, fs)
	r.group, _ = sub.(*cmdGroup)
	return nil
}

// setFlag parses the flag at args[i] and returns the index of the last
// argument consumed.
func (r *resolver) setFlag(args []string, i int) (int, error) {
	s := args[i]
	name := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "-")
	if len(name) == 0 || name[0] == '-' || name[0] == '=' {
		return 0, fmt.Errorf("bad flag syntax: %s", s)
	}
	name, value, hasValue := strings.Cut(name, "=")

	f := r.findFlag(name)
	if f == nil {
		return 0, fmt.Errorf("flag provided but not defined: -%s", name)
	}

	if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
		if !hasValue {
			value = "true"
		}
		if err := f.Value.Set(value); err != nil {
			return 0, fmt.Errorf("invalid boolean value %q for -%s: %w", value, name, err)
		}
		return i, nil
	}

	if !hasValue {
		if i+1 >= len(args) {
			return 0, fmt.Errorf("flag needs an argument: -%s", name)
		}
		i++
		value = args[i]
	}
	if err := f.Value.Set(value); err != nil {
		return 0, fmt.Errorf("invalid value %q for flag -%s: %w", value, name, err)
	}
	return i, nil
}
