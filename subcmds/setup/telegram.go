// Copyright (c) 2025 BVK Chaitanya

package setup

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bvk/unitbot/ctxutil"
	"github.com/bvk/unitbot/server"
	"github.com/bvk/unitbot/telegram"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/visvasity/cli"
	"golang.org/x/term"
)

type Telegram struct {
	dataDir     string
	skipTesting bool

	ownerID  string
	adminID  string
	botToken string
}

func (c *Telegram) Synopsis() string {
	return "Configures alerts and commands through a Telegram bot"
}

func (c *Telegram) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("telegram", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.ownerID, "owner-id", "", "Owner's telegram user id")
	fset.StringVar(&c.adminID, "admin-id", "", "Administrator's telegram user id")
	fset.StringVar(&c.botToken, "bot-token", "", "Telegram bot's authentication token")
	fset.BoolVar(&c.skipTesting, "skip-testing", false, "don't test the parameters")
	return "telegram", fset, cli.CmdFunc(c.run)
}

func (c *Telegram) CommandHelp() string {
	return `

Command "telegram" helps users receive unit and balance alerts on their
Telegram account through a Telegram bot. Bot also answers a few commands like
/batches and /events.

Telegram configuration is optional. It can be configured as follows:

  $ unitbot setup telegram --owner-id=username --bot-token=USCJS2...TVP4KV

`
}

func (c *Telegram) run(ctx context.Context, args []string) error {
	update := func(secrets *server.Secrets) error {
		secrets.Telegram = &telegram.Secrets{
			OwnerID:  c.ownerID,
			AdminID:  c.adminID,
			BotToken: c.botToken,
		}
		if err := secrets.Telegram.Check(); err != nil {
			return err
		}
		if c.skipTesting {
			return nil
		}

		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			fmt.Println("Start a chat with telegram bot and then press any key")
			oldState, err := term.MakeRaw(fd)
			if err != nil {
				return err
			}
			b := make([]byte, 1)
			_, err = os.Stdin.Read(b)
			term.Restore(fd, oldState)
			if err != nil {
				return err
			}
		}

		client, err := telegram.New(ctx, kvmemdb.New(), secrets.Telegram)
		if err != nil {
			return err
		}
		defer client.Close()

		ctxutil.Sleep(ctx, time.Second)
		return client.SendMessage(ctx, time.Now(), "Test message from unitbot telegram setup; please ignore.")
	}
	return updateSecrets(c.dataDir, update)
}
