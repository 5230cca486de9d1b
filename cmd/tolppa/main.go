package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tolppa-client/config"
	"tolppa-client/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tolppa",
	Short: "Tolppa - remote car heater client",
	Long: `Tolppa keeps an eye on a remotely controlled car heater through its
gateway: current state, temperature, consumption and scheduled timers.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $CONFIG_PATH or ./config/config.yaml)")
}

type configKey struct{}

// loadConfig reads the config file and configures logging. A missing file
// falls back to defaults.
func loadConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config/config.yaml"
	}

	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
		log.Debug().Str("path", path).Msg("config file not found; using defaults")
	case err != nil:
		return err
	}

	if err := logging.Init(cfg.Log); err != nil {
		return err
	}
	cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
	return nil
}

func configFrom(cmd *cobra.Command) *config.Config {
	return cmd.Context().Value(configKey{}).(*config.Config)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
