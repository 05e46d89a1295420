// Copyright (c) 2023 BVK Chaitanya

package db

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"

	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
	"github.com/bvkgo/kv"
)

type Edit struct {
	cmdutil.DBFlags

	valueType string

	create bool

	editor string
}

func (c *Edit) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("edit", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.valueType, "value-type", "", "gob type name of the value; inferred from the key when empty")
	fset.StringVar(&c.editor, "editor", "", "editor command; defaults to $EDITOR or vi")
	fset.BoolVar(&c.create, "create", false, "when true, key will be created if it doesn't exist")
	return "edit", fset, cli.CmdFunc(c.run)
}

func (c *Edit) Synopsis() string {
	return "Creates or edits a database value as json in an editor"
}

func (c *Edit) CommandHelp() string {
	return `

Command "edit" decodes the value at a key into its gob type, opens it as json
in an editor and saves the edited json back in the gob encoding. Value type
is inferred from the keyspace for known keys, like /batches/ or /timings/.

Database should not be modified while the bot is running, because the bot
caches the values it owns.

`
}

func (c *Edit) editorCommand() string {
	if len(c.editor) != 0 {
		return c.editor
	}
	if v := os.Getenv("EDITOR"); len(v) != 0 {
		return v
	}
	return "vi"
}

func (c *Edit) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (key) argument")
	}
	key := args[0]
	if !cmdutil.IsGoodKey(key) {
		return fmt.Errorf("key %q must be a clean absolute path: %w", key, os.ErrInvalid)
	}

	typename := c.valueType
	if len(typename) == 0 {
		if typename = keyTypeName(key); len(typename) == 0 {
			return fmt.Errorf("could not infer value type for key %q; use -value-type flag", key)
		}
	}
	if _, err := TypeNameValue(typename); err != nil {
		return err
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	edit := func(ctx context.Context, rw kv.ReadWriter) error {
		value, _ := TypeNameValue(typename)
		v, err := rw.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) || !c.create {
				return fmt.Errorf("could not read key %q: %w", key, err)
			}
		} else if err := gob.NewDecoder(v).Decode(value); err != nil {
			return fmt.Errorf("could not decode value at key %q as %s: %w", key, typename, err)
		}

		orig, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("could not json-marshal value: %w", err)
		}
		modified, err := c.editJSON(ctx, orig)
		if err != nil {
			return err
		}
		if bytes.Equal(orig, modified) {
			return fmt.Errorf("value is not modified: %w", os.ErrExist)
		}

		newValue, _ := TypeNameValue(typename)
		if err := json.Unmarshal(modified, newValue); err != nil {
			return fmt.Errorf("edited content is not a valid %s: %w", typename, err)
		}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(newValue); err != nil {
			return fmt.Errorf("could not gob-encode edited value: %w", err)
		}
		return rw.Set(ctx, key, &buf)
	}
	if err := kv.WithReadWriter(ctx, db, edit); err != nil {
		return err
	}
	fmt.Printf("updated key %q\n", key)
	return nil
}

// editJSON opens the data in an editor through a temporary file and returns
// the edited content.
func (c *Edit) editJSON(ctx context.Context, data []byte) ([]byte, error) {
	fp, err := os.CreateTemp("", "unitbot-edit-*.json")
	if err != nil {
		return nil, fmt.Errorf("could not create temp file: %w", err)
	}
	defer os.Remove(fp.Name())

	if _, err := fp.Write(data); err != nil {
		fp.Close()
		return nil, fmt.Errorf("could not write to temp file: %w", err)
	}
	if err := fp.Close(); err != nil {
		return nil, fmt.Errorf("could not close temp file: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.editorCommand(), fp.Name())
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("editor %q failed: %w", c.editorCommand(), err)
	}
	return os.ReadFile(fp.Name())
}
