package main

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tolppa-client/config"
	"tolppa-client/internal/db"
	"tolppa-client/internal/gateway"
	"tolppa-client/internal/poller"
	"tolppa-client/internal/session"
	"tolppa-client/internal/store"
)

// app wires the shared components every command needs.
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	sessions *session.Store
	engine   *poller.Engine
}

// newApp opens storage and builds the engine. listeners, if given, receives
// the open database and returns extra engine options.
func newApp(ctx context.Context, cfg *config.Config, listeners func(*gorm.DB) []poller.Option) (*app, error) {
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sessions, err := session.New(ctx, store.NewGormStore(gormDB))
	if err != nil {
		closeDB(gormDB)
		return nil, err
	}

	client := gateway.NewClient(cfg.Gateway.URL,
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithProxy(cfg.Gateway.HTTPProxy),
	)

	opts := []poller.Option{
		poller.WithInterval(cfg.Gateway.PollInterval),
		poller.WithClock(localClock(cfg)),
	}
	if listeners != nil {
		opts = append(opts, listeners(gormDB)...)
	}

	return &app{
		cfg:      cfg,
		db:       gormDB,
		sessions: sessions,
		engine:   poller.New(client, sessions, opts...),
	}, nil
}

func localClock(cfg *config.Config) func() time.Time {
	return func() time.Time { return time.Now().In(cfg.Gateway.Location) }
}

func (a *app) close() {
	a.engine.Stop()
	closeDB(a.db)
}

func closeDB(gormDB *gorm.DB) {
	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
}
