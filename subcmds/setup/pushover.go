// Copyright (c) 2025 BVK Chaitanya

package setup

import (
	"context"
	"flag"
	"time"

	"github.com/bvk/unitbot/pushover"
	"github.com/bvk/unitbot/server"
	"github.com/visvasity/cli"
)

type PushOver struct {
	dataDir     string
	skipTesting bool

	appID  string
	userID string
}

func (c *PushOver) Synopsis() string {
	return "Configures alerts through the PushOver service"
}

func (c *PushOver) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("pushover", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.userID, "user-id", "", "PushOver service user identifier")
	fset.StringVar(&c.appID, "app-id", "", "PushOver service Application identifier")
	fset.BoolVar(&c.skipTesting, "skip-testing", false, "don't test the parameters")
	return "pushover", fset, cli.CmdFunc(c.run)
}

func (c *PushOver) CommandHelp() string {
	return `

Command "pushover" helps users configure unit and balance alerts through the
Pushover service.

Pushover keys are optional. They are only required to receive alerts on the
mobile phones. They can be configured as follows:

  $ unitbot setup pushover --app-id=awja5ue...ito7svf --user-id=uscjs2...tvp4kv

`
}

func (c *PushOver) run(ctx context.Context, args []string) error {
	update := func(secrets *server.Secrets) error {
		secrets.Pushover = &pushover.Keys{
			ApplicationKey: c.appID,
			UserKey:        c.userID,
		}
		if c.skipTesting {
			return nil
		}
		// Send a message to validate the keys.
		client, err := pushover.New(secrets.Pushover)
		if err != nil {
			return err
		}
		return client.SendMessage(ctx, time.Now(), "Test message from unitbot pushover setup; please ignore.")
	}
	return updateSecrets(c.dataDir, update)
}
