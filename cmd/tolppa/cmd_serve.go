package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"tolppa-client/config"
	"tolppa-client/internal/api"
	"tolppa-client/internal/mqtt"
	"tolppa-client/internal/notification"
	"tolppa-client/internal/poller"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the gateway and serve the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// dialMQTT connects the status publisher.
var dialMQTT = func(cfg config.MQTTConfig) (mqtt.Publisher, error) {
	return mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID, cfg.Topic)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var opts []poller.Option
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			return errors.New("push is enabled but VAPID keys are not configured")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	}

	var bridge *mqtt.Bridge
	var pub mqtt.Publisher
	if cfg.MQTT.Broker != "" {
		var err error
		pub, err = dialMQTT(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		bridge = mqtt.NewBridge(pub)
		opts = append(opts, poller.WithListener(bridge))
		log.Info().Str("broker", cfg.MQTT.Broker).Str("topic", cfg.MQTT.Topic).Msg("publishing status to MQTT")
	}

	a, err := newApp(ctx, cfg, func(gormDB *gorm.DB) []poller.Option {
		if webpushOptions == nil {
			return opts
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		log.Info().Int("workers", cfg.WorkerPool.Size).Msg("push notifications enabled")
		return append(opts, poller.WithListener(pool))
	})
	if err != nil {
		// The bridge closes the publisher once it runs.
		if pub != nil {
			if cerr := pub.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("failed to close MQTT publisher")
			}
		}
		return err
	}
	defer a.close()

	if bridge != nil {
		go bridge.Run(ctx)
	}

	if err := a.engine.Start(ctx); err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(a.engine, a.db, webpushOptions, localClock(cfg))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler, cfg.Server),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received, stopping services")
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	log.Info().Msg("server gracefully stopped")
	return nil
}
