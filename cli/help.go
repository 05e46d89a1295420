// Copyright (c) 2023 BVK Chaitanya

package cli

import (
	"cmp"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
)

func numFlags(fs *flag.FlagSet) int {
	n := 0
	fs.VisitAll(func(*flag.Flag) { n++ })
	return n
}

func synopsis(c Command) string {
	if v, ok := c.(interface{ Synopsis() string }); ok {
		return v.Synopsis()
	}
	if v, ok := c.(*cmdGroup); ok {
		return v.synopsis
	}
	return ""
}

func helpDoc(c Command) string {
	if v, ok := c.(interface{ CommandHelp() string }); ok {
		return strings.TrimSpace(v.CommandHelp())
	}
	return synopsis(c)
}

// usagePath returns the command names from the root to the last command,
// like "unitbot batch create".
func usagePath(path []Command) string {
	var words []string
	for _, c := range path {
		name, _, _ := c.Command()
		words = append(words, name)
	}
	return strings.Join(words, " ")
}

func usage(path []Command) string {
	words := []string{usagePath(path)}
	for _, c := range path {
		if _, fs, _ := c.Command(); numFlags(fs) > 0 {
			words = append(words, "<flags>")
			break
		}
	}
	if _, ok := path[len(path)-1].(*cmdGroup); ok {
		words = append(words, "<subcommand>")
	}
	return strings.Join(append(words, "<args>"), " ")
}

// inheritedFlags collects the flags defined by the ancestors of the last
// command. When a flag is defined more than once, the innermost definition
// wins.
func inheritedFlags(path []Command) *flag.FlagSet {
	byName := make(map[string]*flag.Flag)
	for _, c := range path[:len(path)-1] {
		_, fs, _ := c.Command()
		fs.VisitAll(func(f *flag.Flag) { byName[f.Name] = f })
	}
	fset := flag.NewFlagSet("inherited", flag.ContinueOnError)
	for _, f := range byName {
		fset.Var(f.Value, f.Name, f.Usage)
	}
	return fset
}

// subcommands returns the name and synopsis pairs of the last command's
// subcommands ordered by name. Root command also lists the special commands.
func subcommands(path []Command) [][2]string {
	var subs [][2]string
	if cg, ok := path[len(path)-1].(*cmdGroup); ok {
		for _, c := range cg.subcmds {
			name, _, _ := c.Command()
			subs = append(subs, [2]string{name, synopsis(c)})
		}
	}
	slices.SortFunc(subs, func(a, b [2]string) int { return cmp.Compare(a[0], b[0]) })

	if len(path) == 1 {
		var specials [][2]string
		for name, doc := range specialCmds {
			specials = append(specials, [2]string{name, doc})
		}
		slices.SortFunc(specials, func(a, b [2]string) int { return cmp.Compare(a[0], b[0]) })
		subs = append(specials, subs...)
	}
	return subs
}

func printHelp(w io.Writer, path []Command) error {
	cmd := path[len(path)-1]

	fmt.Fprintf(w, "Usage: %s\n", usage(path))
	if doc := helpDoc(cmd); len(doc) > 0 {
		fmt.Fprintf(w, "\n%s\n", doc)
	}
	if subs := subcommands(path); len(subs) > 0 {
		fmt.Fprintf(w, "\nSubcommands:\n")
		for _, sub := range subs {
			fmt.Fprintf(w, "\t%-15s  %s\n", sub[0], sub[1])
		}
	}
	if _, fs, _ := cmd.Command(); numFlags(fs) > 0 {
		fmt.Fprintf(w, "\nFlags:\n")
		fs.SetOutput(w)
		fs.PrintDefaults()
	}
	if fs := inheritedFlags(path); numFlags(fs) > 0 {
		fmt.Fprintf(w, "\nInherited Flags:\n")
		fs.SetOutput(w)
		fs.PrintDefaults()
	}
	return nil
}

func printFlags(w io.Writer, path []Command) error {
	_, fs, _ := path[len(path)-1].Command()
	fs.SetOutput(w)
	fs.PrintDefaults()
	return nil
}
