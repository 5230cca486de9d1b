package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tolppa-client/internal/model"
	"tolppa-client/internal/poller"
	"tolppa-client/internal/view"
)

var errNotLoggedIn = errors.New("no token stored; run `tolppa login` or `tolppa token` first")

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fetch and print the current device status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd)
	a, err := newApp(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.sessions.Get().Authenticated() {
		return errNotLoggedIn
	}

	a.engine.Refresh(cmd.Context())
	snap := a.engine.Snapshot()
	printStatus(cmd, snap, view.Build(snap.Status, localClock(cfg)()))
	if snap.Status.Phase == model.PhaseError {
		return errors.New(snap.Message.Text)
	}
	return nil
}

func printStatus(cmd *cobra.Command, snap poller.Snapshot, v view.View) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, v.Summary())
	for _, r := range v.Reservations {
		line := fmt.Sprintf("  %s (%s)", r.Label, r.DurationText)
		if r.RemainingMinutes != nil {
			line += fmt.Sprintf(", %d minutes left", *r.RemainingMinutes)
		}
		fmt.Fprintln(out, line)
	}
	if snap.Message != nil && snap.Status.Phase != model.PhaseError {
		fmt.Fprintln(out, snap.Message.Text)
	}
}
