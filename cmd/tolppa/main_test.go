package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tolppa-client/config"
	"tolppa-client/internal/model"
	"tolppa-client/internal/mqtt"
	"tolppa-client/internal/timer"
)

func commandWith(cfg *config.Config) (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.WithValue(context.Background(), configKey{}, cfg))
	return cmd, &out
}

func TestFormFromFlags(t *testing.T) {
	t.Cleanup(func() { timerFlags.at, timerFlags.duration, timerFlags.delay, timerFlags.eco = "", 0, 0, false })

	timerFlags.duration, timerFlags.delay, timerFlags.eco = 90, 15, true
	form, err := formFromFlags()
	require.NoError(t, err)
	assert.Equal(t, timer.Form{Quick: true, Duration: 90, Delay: 15, OptimizeForCost: true}, form)

	timerFlags.at = "02.01.2024 07:30"
	form, err = formFromFlags()
	require.NoError(t, err)
	assert.False(t, form.Quick)
	assert.Equal(t, "02.01.2024", form.EndDate)
	assert.Equal(t, "07:30", form.EndTime)

	timerFlags.at = "tomorrow"
	_, err = formFromFlags()
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{{"serve"}, {"status"}, {"login"}, {"logout"}, {"token"}, {"timer", "add"}, {"timer", "clear"}} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestServe_ClosesPublisherWhenStartupFails(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	orig := dialMQTT
	dialMQTT = func(config.MQTTConfig) (mqtt.Publisher, error) { return pub, nil }
	t.Cleanup(func() { dialMQTT = orig })

	cfg := config.Default()
	cfg.MQTT.Broker = "tcp://broker.test:1883"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "missing", "tolppa.db")

	cmd, _ := commandWith(cfg)
	err := runServe(cmd, nil)
	assert.ErrorContains(t, err, "database")
	assert.True(t, pub.IsClosed())
}

func TestTimerAction_NoteFollowsSuccessOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "tolppa.db")

	a, err := newApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	_, err = a.sessions.Update(context.Background(), "cookie")
	require.NoError(t, err)
	a.close()

	const note = "Heating for 2h 0min"

	cmd, out := commandWith(cfg)
	err = runTimerAction(cmd, note, func(*app) (model.Message, error) {
		return model.Message{Severity: model.SeverityError, Text: "Request failed with status code 500"}, nil
	})
	assert.EqualError(t, err, "Request failed with status code 500")
	assert.NotContains(t, out.String(), note)

	cmd, out = commandWith(cfg)
	err = runTimerAction(cmd, note, func(*app) (model.Message, error) {
		return model.Message{Severity: model.SeveritySuccess, Text: "Timer sent to gateway successfully!"}, nil
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "Timer sent to gateway successfully!\n"+note+"\n"), out.String())
}
