// Copyright (c) 2023 BVK Chaitanya

package main

import (
	"context"
	"log"
	"os"

	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/envfile"
	"github.com/bvk/unitbot/subcmds"
	"github.com/bvk/unitbot/subcmds/account"
	"github.com/bvk/unitbot/subcmds/batch"
	"github.com/bvk/unitbot/subcmds/db"
	"github.com/bvk/unitbot/subcmds/proxy"
	"github.com/bvk/unitbot/subcmds/setup"
	"github.com/bvk/unitbot/subcmds/unit"
)

func main() {
	if _, err := envfile.UpdateEnv(".unitbot.env", envfile.SearchCurrentDir(true)); err != nil {
		log.Printf("could not load environment file (ignored): %v", err)
	}

	dbCmds := []cli.Command{
		new(db.Get),
		new(db.Set),
		new(db.Edit),
		new(db.Delete),
		new(db.List),
		new(db.Backup),
		new(db.Restore),
	}

	proxyCmds := []cli.Command{
		new(proxy.Add),
		new(proxy.Import),
		new(proxy.List),
		new(proxy.Delete),
	}

	accountCmds := []cli.Command{
		new(account.Add),
		new(account.List),
		new(account.Delete),
		new(account.SetProxy),
	}

	batchCmds := []cli.Command{
		new(batch.Create),
		new(batch.List),
		new(batch.Get),
		new(batch.Close),
		new(batch.Pause),
		new(batch.Resume),
		new(batch.Watch),
		new(batch.Events),
		new(batch.SetTiming),
	}

	unitCmds := []cli.Command{
		new(unit.List),
		new(unit.Create),
		new(unit.Close),
		new(unit.Import),
	}

	setupCmds := []cli.Command{
		new(setup.Telegram),
		new(setup.PushOver),
	}

	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Status),
		cli.CommandGroup("proxy", "Manage http proxies for the accounts", proxyCmds...),
		cli.CommandGroup("account", "Manage trading accounts", accountCmds...),
		cli.CommandGroup("batch", "Manage batches of paired accounts", batchCmds...),
		cli.CommandGroup("unit", "Manage hedged units in a batch", unitCmds...),
		cli.CommandGroup("setup", "Configure alert messengers", setupCmds...),
		cli.CommandGroup("db", "View/update database directly", dbCmds...),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
