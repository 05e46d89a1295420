// Copyright (c) 2025 BVK Chaitanya

package cmdutil

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/gobs"
)

func PrintBatches(w io.Writer, batches []*api.BatchInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "Name\tState\tAccounts\tRecreate\tSmartBalance\tID\t\n")
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t\n", b.Name, b.State, strings.Join(b.Accounts, ","), b.DefaultRecreateTiming, b.SmartBalanceUsage, b.ID)
	}
	tw.Flush()
}

// PrintSnapshot prints the units, in-flight actions and account values of a
// batch.
func PrintSnapshot(w io.Writer, snap *api.Snapshot) {
	if snap == nil {
		return
	}
	now := time.Now()

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "Asset\tStatus\tSize\tLeverage\tAge\tRecreate\tLegs\t\n")
	for _, u := range snap.Units {
		age := "-"
		if !u.OpenedTime.IsZero() {
			age = now.Sub(u.OpenedTime).Truncate(time.Second).String()
		}
		var legs []string
		for _, l := range u.Legs {
			legs = append(legs, fmt.Sprintf("%s=%s", l.Account, l.Size))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dx\t%s\t%s\t%s\t\n", u.Asset, u.Status, u.Size, u.Leverage, age, u.RecreateTiming, strings.Join(legs, " "))
	}
	var assets []string
	for asset := range snap.Statuses {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		fmt.Fprintf(tw, "%s\t%s\t\t\t\t\t\t\n", asset, snap.Statuses[asset])
	}
	tw.Flush()

	if len(snap.Balances) > 0 {
		var names []string
		for name := range snap.Balances {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
		fmt.Fprintf(tw, "Account\tValue\t\n")
		for _, name := range names {
			fmt.Fprintf(tw, "%s\t%s\t\n", name, snap.Balances[name].StringFixed(2))
		}
		tw.Flush()
	}
}

func FormatEvent(e *gobs.Event) string {
	return fmt.Sprintf("%s [%s] %s %s %s: %s", e.Time.Format(time.DateTime), e.BatchName, e.Asset, e.Action, e.Status, e.Message)
}
