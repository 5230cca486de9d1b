package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"tolppa-client/internal/model"
	"tolppa-client/internal/poller"
	"tolppa-client/internal/timer"
)

// Controller is the engine surface the HTTP API drives.
type Controller interface {
	Snapshot() poller.Snapshot
	SetToken(ctx context.Context, raw string) error
	Login(ctx context.Context, email, password string) (model.Message, error)
	Logout(ctx context.Context) error
	SubmitTimer(ctx context.Context, form timer.Form) (model.Message, error)
	DeleteAllTimers(ctx context.Context) (model.Message, error)
	Refresh(ctx context.Context)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	ctrl    Controller
	db      *gorm.DB
	webpush *webpush.Options
	now     func() time.Time
}

// NewHandler creates a new API handler. now supplies the local wall clock
// used to derive timer views.
func NewHandler(ctrl Controller, db *gorm.DB, webpushOptions *webpush.Options, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		ctrl:    ctrl,
		db:      db,
		webpush: webpushOptions,
		now:     now,
	}
}
