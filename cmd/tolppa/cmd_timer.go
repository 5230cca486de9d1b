package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tolppa-client/internal/model"
	"tolppa-client/internal/timer"
	"tolppa-client/internal/view"
)

var timerFlags struct {
	duration int
	delay    int
	at       string
	eco      bool
}

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Manage heating timers",
}

var timerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Schedule a heating timer",
	Long: `Schedule a heating timer. Without --at the car is ready --delay plus
--duration minutes from now. With --at "DD.MM.YYYY HH:mm" it is ready then.`,
	RunE: runTimerAdd,
}

var timerClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every timer on the device",
	RunE:  runTimerClear,
}

func init() {
	timerAddCmd.Flags().IntVar(&timerFlags.duration, "duration", timer.DefaultDuration,
		fmt.Sprintf("heating minutes (%d-%d)", timer.MinDuration, timer.MaxDuration))
	timerAddCmd.Flags().IntVar(&timerFlags.delay, "delay", 0, "minutes to wait before heating starts")
	timerAddCmd.Flags().StringVar(&timerFlags.at, "at", "", `ready time as "DD.MM.YYYY HH:mm"`)
	timerAddCmd.Flags().BoolVar(&timerFlags.eco, "eco", false, "let the device optimize for electricity cost")

	timerCmd.AddCommand(timerAddCmd, timerClearCmd)
	rootCmd.AddCommand(timerCmd)
}

// formFromFlags builds the timer form from command-line flags.
func formFromFlags() (timer.Form, error) {
	form := timer.Form{
		Quick:           timerFlags.at == "",
		Duration:        timerFlags.duration,
		Delay:           timerFlags.delay,
		OptimizeForCost: timerFlags.eco,
	}
	if form.Quick {
		return form, nil
	}
	date, clock, ok := strings.Cut(strings.TrimSpace(timerFlags.at), " ")
	if !ok {
		return timer.Form{}, fmt.Errorf("invalid --at %q: want \"DD.MM.YYYY HH:mm\"", timerFlags.at)
	}
	form.EndDate = date
	form.EndTime = strings.TrimSpace(clock)
	return form, nil
}

func runTimerAdd(cmd *cobra.Command, args []string) error {
	form, err := formFromFlags()
	if err != nil {
		return err
	}
	note := fmt.Sprintf("Heating for %s", timer.FormatMinutes(form.Duration))
	return runTimerAction(cmd, note, func(a *app) (model.Message, error) {
		return a.engine.SubmitTimer(cmd.Context(), form)
	})
}

func runTimerClear(cmd *cobra.Command, args []string) error {
	return runTimerAction(cmd, "", func(a *app) (model.Message, error) {
		return a.engine.DeleteAllTimers(cmd.Context())
	})
}

// runTimerAction runs action against a fresh app. note is printed after the
// success message only.
func runTimerAction(cmd *cobra.Command, note string, action func(*app) (model.Message, error)) error {
	cfg := configFrom(cmd)
	a, err := newApp(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.sessions.Get().Authenticated() {
		return errNotLoggedIn
	}

	msg, err := action(a)
	if err != nil {
		return err
	}
	if msg.Severity == model.SeverityError {
		return errors.New(msg.Text)
	}
	printResult(cmd, msg, note)

	snap := a.engine.Snapshot()
	printStatus(cmd, snap, view.Build(snap.Status, localClock(cfg)()))
	return nil
}

func printResult(cmd *cobra.Command, msg model.Message, note string) {
	fmt.Fprintln(cmd.OutOrStdout(), msg.Text)
	if note != "" {
		fmt.Fprintln(cmd.OutOrStdout(), note)
	}
}
