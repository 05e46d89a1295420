// Copyright (c) 2025 BVK Chaitanya

package batch

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/subcmds/cmdutil"
	"github.com/gorilla/websocket"
)

type Watch struct {
	cmdutil.ClientFlags

	snapshots bool
}

func (c *Watch) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("watch", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.BoolVar(&c.snapshots, "snapshots", false, "when true, prints the unit tables in addition to the events")
	return "watch", fset, cli.CmdFunc(c.run)
}

func (c *Watch) Synopsis() string {
	return "Prints the events of all or one batch as they happen"
}

func (c *Watch) run(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("takes at most one (batch name or id) argument: %w", os.ErrInvalid)
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	query := make(url.Values)
	if len(args) == 1 {
		query.Set("batch", args[0])
	}
	wsURL := c.ClientFlags.WebsocketURL(api.EventsPath, query)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	stopf := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopf()

	for {
		msg := new(api.StreamMessage)
		if err := conn.ReadJSON(msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("could not read from the stream: %w", err)
		}
		if msg.Event != nil {
			fmt.Println(cmdutil.FormatEvent(msg.Event))
		}
		if msg.Snapshot != nil && c.snapshots {
			fmt.Printf("\n%s @ %s\n", msg.Snapshot.BatchName, msg.Snapshot.Time.Format("15:04:05"))
			cmdutil.PrintSnapshot(os.Stdout, msg.Snapshot)
		}
	}
}
