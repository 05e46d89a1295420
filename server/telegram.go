// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/bvk/unitbot/telegram"
	"github.com/bvk/unitbot/timerange"
	"github.com/visvasity/cli"
)

func (s *Server) AddTelegramCommand(ctx context.Context, name, purpose string, handler telegram.CmdFunc) error {
	if s.telegramClient != nil {
		return s.telegramClient.AddCommand(ctx, name, purpose, handler)
	}
	return nil // Ignored
}

func (s *Server) batchesTelegramCmd(ctx context.Context, args []string) error {
	batches, err := s.store.ListBatches(ctx)
	if err != nil {
		return err
	}
	w := cli.Stdout(ctx)
	if len(batches) == 0 {
		fmt.Fprintln(w, "No batches.")
		return nil
	}
	for _, b := range batches {
		fmt.Fprintf(w, "%s (%s)\n", b.Name, s.batchState(ctx, b.ID))
		m, ok := s.monitors.Load(b.ID)
		if !ok {
			continue
		}
		snap := m.ctl.Snapshot()
		for _, u := range snap.Units {
			fmt.Fprintf(w, "  %s size=%s lev=%dx legs=%d\n", u.Asset, u.Size.StringFixed(2), u.Leverage, len(u.Legs))
		}
		for asset, status := range snap.Statuses {
			fmt.Fprintf(w, "  %s %s\n", asset, status)
		}
	}
	return nil
}

func (s *Server) eventsTelegramCmd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one batch name or id argument: %w", os.ErrInvalid)
	}
	b, err := s.store.GetBatch(ctx, args[0])
	if err != nil {
		return err
	}
	events, err := s.store.ListEvents(ctx, b.ID, timerange.Today(time.Local))
	if err != nil {
		return err
	}
	w := cli.Stdout(ctx)
	if len(events) == 0 {
		fmt.Fprintln(w, "No events today.")
		return nil
	}
	for _, e := range events {
		fmt.Fprintf(w, "%s %s %s %s %s\n", e.Time.Format(time.TimeOnly), e.Asset, e.Action, e.Status, e.Message)
	}
	return nil
}

func versionTelegramCmd(ctx context.Context, _ []string) error {
	fmt.Fprintln(cli.Stdout(ctx), version())
	return nil
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	version := info.Main.Version
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			version = fmt.Sprintf("%s (%s)", version, s.Value)
		}
	}
	return version
}
