// Package poller keeps the device status fresh. It owns the polling schedule,
// classifies gateway failures into user messages and drives the session
// store when the gateway rejects the token.
package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tolppa-client/internal/gateway"
	"tolppa-client/internal/model"
	"tolppa-client/internal/timer"
)

// User-facing message texts.
const (
	MsgNeedToken     = "You need to set token!"
	MsgLoginFailed   = "Login failed"
	MsgUnknown       = "Unknown error!"
	MsgLoggedIn      = "Logged in successfully!"
	MsgTimerSent     = "Timer sent to gateway successfully!"
	MsgTimersDeleted = "All timers deleted successfully!"
)

// DefaultInterval is the polling period.
const DefaultInterval = 5 * time.Second

// ErrActionUnavailable is returned for timer actions while there is no token
// or the device status is unknown.
var ErrActionUnavailable = errors.New("action unavailable: not authenticated or device status unknown")

// Gateway is the subset of the gateway client the engine uses.
type Gateway interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
	FetchStatus(ctx context.Context, token string) (model.DeviceStatus, error)
	CreateTimer(ctx context.Context, req gateway.TimerRequest) error
	DeleteAllTimers(ctx context.Context, token string) error
}

// Sessions is the credential store the engine drives.
type Sessions interface {
	Get() model.Credential
	Update(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string) (bool, error)
	SetDelegatedCredentials(ctx context.Context, email, password string) error
	Purge(ctx context.Context) error
}

// Listener is told about every successfully fetched snapshot. prev is nil
// for the first snapshot after start, login or a token change. Listeners
// run on the polling goroutine and must not block.
type Listener interface {
	OnStatus(ctx context.Context, prev *model.DeviceStatus, next model.DeviceStatus)
}

// Snapshot is what the presentation layer reads.
type Snapshot struct {
	Status         model.Status   `json:"status"`
	Message        *model.Message `json:"message,omitempty"`
	Authenticated  bool           `json:"authenticated"`
	Polling        bool           `json:"polling"`
	ActionsEnabled bool           `json:"actionsEnabled"`
}

// pollHandle is the revocable handle of one polling schedule.
type pollHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine is the single writer of device status and user message.
type Engine struct {
	gateway   Gateway
	sessions  Sessions
	interval  time.Duration
	now       func() time.Time
	listeners []Listener

	// ops serialises user intents so a login cannot interleave with a logout.
	ops sync.Mutex

	mu              sync.Mutex
	status          model.Status
	message         *model.Message
	messageFromPoll bool
	last            *model.DeviceStatus
	inFlight        bool
	rerun           bool
	suspended       bool
	handle          *pollHandle
}

// Option configures an Engine.
type Option func(*Engine)

// WithInterval overrides the polling period.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithClock overrides the time source used to build quick timers.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithListener registers a status listener.
func WithListener(l Listener) Option {
	return func(e *Engine) {
		e.listeners = append(e.listeners, l)
	}
}

// New creates an idle engine. Call Start to begin polling.
func New(gw Gateway, sessions Sessions, opts ...Option) *Engine {
	e := &Engine{
		gateway:  gw,
		sessions: sessions,
		interval: DefaultInterval,
		now:      time.Now,
		status:   model.Loading(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins polling if a token is stored. With no token but stored
// delegated credentials it logs in once on the user's behalf.
func (e *Engine) Start(ctx context.Context) error {
	cred := e.sessions.Get()
	if cred.Authenticated() {
		log.Info().Dur("interval", e.interval).Msg("starting status polling")
		e.startPolling()
		return nil
	}
	if cred.HasDelegated() {
		log.Info().Str("email", cred.Email).Msg("no token stored; logging in with saved credentials")
		_, err := e.Login(ctx, cred.Email, cred.Password)
		return err
	}
	log.Info().Msg("no token stored; polling is idle")
	return nil
}

// Stop cancels the schedule and waits for the polling goroutine to exit.
// An in-flight request is not aborted.
func (e *Engine) Stop() {
	e.mu.Lock()
	h := e.handle
	e.handle = nil
	e.mu.Unlock()

	if h != nil {
		h.cancel()
		<-h.done
	}
}

// Snapshot returns the current status and message.
func (e *Engine) Snapshot() Snapshot {
	authenticated := e.sessions.Get().Authenticated()

	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Status:        e.status,
		Authenticated: authenticated,
		Polling:       e.handle != nil,
	}
	if e.message != nil {
		m := *e.message
		snap.Message = &m
	}
	snap.ActionsEnabled = authenticated && e.status.Phase != model.PhaseError
	return snap
}

// SetToken installs a raw token (the pasted cookie). An empty token stops
// polling.
func (e *Engine) SetToken(ctx context.Context, raw string) error {
	e.ops.Lock()
	defer e.ops.Unlock()
	return e.installToken(ctx, strings.TrimSpace(raw), nil)
}

// Login authenticates with the gateway. Gateway failures become the user
// message; only local storage failures are returned.
func (e *Engine) Login(ctx context.Context, email, password string) (model.Message, error) {
	e.ops.Lock()
	defer e.ops.Unlock()

	token, err := e.gateway.Authenticate(ctx, email, password)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("login failed")
		return e.setMessage(model.SeverityError, MsgLoginFailed, false), nil
	}

	if err := e.sessions.SetDelegatedCredentials(ctx, email, password); err != nil {
		return model.Message{}, err
	}
	msg := model.Message{Severity: model.SeveritySuccess, Text: MsgLoggedIn}
	if err := e.installToken(ctx, token, &msg); err != nil {
		return model.Message{}, err
	}
	log.Info().Str("email", email).Msg("logged in")
	return msg, nil
}

// Logout forgets every session field and goes idle.
func (e *Engine) Logout(ctx context.Context) error {
	e.ops.Lock()
	defer e.ops.Unlock()

	if err := e.sessions.Purge(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	e.haltLocked()
	e.suspended = false
	e.status = model.Loading()
	e.last = nil
	e.message = nil
	e.messageFromPoll = false
	e.mu.Unlock()
	log.Info().Msg("logged out")
	return nil
}

// SubmitTimer builds and sends a timer. Form validation errors and
// ErrActionUnavailable are returned; gateway failures become the message.
func (e *Engine) SubmitTimer(ctx context.Context, form timer.Form) (model.Message, error) {
	e.ops.Lock()
	defer e.ops.Unlock()

	token, err := e.actionToken()
	if err != nil {
		return model.Message{}, err
	}
	req, err := timer.Build(form, token, e.now())
	if err != nil {
		return model.Message{}, err
	}

	if err := e.gateway.CreateTimer(ctx, req); err != nil {
		log.Warn().Err(err).Msg("timer submission failed")
		return e.setMessage(model.SeverityError, err.Error(), false), nil
	}
	log.Info().Str("end_date", req.EndDate).Str("end_time", req.EndTime).Int("duration", req.Duration).Msg("timer sent")
	msg := e.setMessage(model.SeveritySuccess, MsgTimerSent, false)
	e.invalidateAndRefresh(ctx)
	return msg, nil
}

// DeleteAllTimers clears every timer on the device.
func (e *Engine) DeleteAllTimers(ctx context.Context) (model.Message, error) {
	e.ops.Lock()
	defer e.ops.Unlock()

	token, err := e.actionToken()
	if err != nil {
		return model.Message{}, err
	}
	if err := e.gateway.DeleteAllTimers(ctx, token); err != nil {
		log.Warn().Err(err).Msg("timer deletion failed")
		return e.setMessage(model.SeverityError, err.Error(), false), nil
	}
	log.Info().Msg("all timers deleted")
	msg := e.setMessage(model.SeveritySuccess, MsgTimersDeleted, false)
	e.invalidateAndRefresh(ctx)
	return msg, nil
}

// Refresh performs one fetch outside the schedule. If a fetch is already
// running, one more fetch is queued behind it and Refresh returns at once.
// A successful refresh after a failure resumes the suspended schedule.
func (e *Engine) Refresh(ctx context.Context) {
	if !e.fetch(ctx, true) {
		return
	}
	e.resume()
}

// resume restarts polling that a fetch failure suspended, provided the
// latest fetch succeeded and the token is still set.
func (e *Engine) resume() {
	token := e.sessions.Get().Token

	e.mu.Lock()
	if !e.suspended || e.handle != nil || e.status.Phase != model.PhaseReady || token == "" {
		e.mu.Unlock()
		return
	}
	h := e.startLocked()
	e.mu.Unlock()

	log.Info().Msg("status recovered; polling resumed")
	go e.run(h.ctx, h)
}

func (e *Engine) actionToken() (string, error) {
	token := e.sessions.Get().Token
	e.mu.Lock()
	errored := e.status.Phase == model.PhaseError
	e.mu.Unlock()
	if token == "" || errored {
		return "", ErrActionUnavailable
	}
	return token, nil
}

func (e *Engine) invalidateAndRefresh(ctx context.Context) {
	e.mu.Lock()
	e.status = model.Loading()
	e.mu.Unlock()
	e.fetch(ctx, true)
}

// installToken stores token and restarts or stops polling. msg, if set, is
// shown before the first fetch can report anything.
func (e *Engine) installToken(ctx context.Context, token string, msg *model.Message) error {
	poll, err := e.sessions.Update(ctx, token)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.status = model.Loading()
	e.last = nil
	if msg != nil {
		m := *msg
		e.message = &m
		e.messageFromPoll = false
	}
	if !poll {
		e.haltLocked()
		e.suspended = false
	}
	e.mu.Unlock()

	if poll {
		e.startPolling()
	}
	return nil
}

func (e *Engine) setMessage(sev model.Severity, text string, fromPoll bool) model.Message {
	msg := model.Message{Severity: sev, Text: text}
	e.mu.Lock()
	e.message = &msg
	e.messageFromPoll = fromPoll
	e.mu.Unlock()
	return msg
}

func (e *Engine) startPolling() {
	e.mu.Lock()
	h := e.startLocked()
	e.mu.Unlock()

	go e.run(h.ctx, h)
}

// startLocked replaces the current schedule with a fresh handle. The caller
// launches run.
func (e *Engine) startLocked() *pollHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &pollHandle{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	e.haltLocked()
	e.suspended = false
	e.handle = h
	return h
}

// haltLocked revokes the current schedule without waiting for it.
func (e *Engine) haltLocked() {
	if e.handle != nil {
		e.handle.cancel()
		e.handle = nil
	}
}

func (e *Engine) run(ctx context.Context, h *pollHandle) {
	defer close(h.done)
	defer e.release(h)

	if !e.fetch(ctx, true) {
		return
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.fetch(ctx, false) {
				return
			}
		}
	}
}

func (e *Engine) release(h *pollHandle) {
	e.mu.Lock()
	if e.handle == h {
		e.handle = nil
	}
	e.mu.Unlock()
}

// fetch runs one status request and reports whether polling should
// continue. While another request is running a tick is dropped, and a queued
// request asks the running one for a single follow-up fetch.
func (e *Engine) fetch(ctx context.Context, queue bool) bool {
	if ctx.Err() != nil {
		return false
	}

	e.mu.Lock()
	if e.inFlight {
		if queue {
			e.rerun = true
		}
		e.mu.Unlock()
		return true
	}
	e.inFlight = true
	e.mu.Unlock()

	// Stopping the schedule must not abort a request already on the wire.
	reqCtx := context.WithoutCancel(ctx)
	keep := e.fetchOnce(reqCtx)

	e.mu.Lock()
	again := keep && e.rerun
	e.rerun = false
	e.mu.Unlock()

	if again {
		keep = e.fetchOnce(reqCtx)
	}

	e.mu.Lock()
	e.inFlight = false
	e.rerun = false
	e.mu.Unlock()
	return keep
}

func (e *Engine) fetchOnce(ctx context.Context) bool {
	token := e.sessions.Get().Token
	if token == "" {
		return false
	}
	device, err := e.gateway.FetchStatus(ctx, token)
	return e.apply(ctx, token, device, err)
}

// apply folds one fetch result into the engine state.
func (e *Engine) apply(ctx context.Context, token string, device model.DeviceStatus, err error) bool {
	e.mu.Lock()

	if e.sessions.Get().Token != token {
		e.mu.Unlock()
		log.Debug().Msg("dropping status fetched with a stale token")
		return true
	}

	if err == nil {
		prev := e.last
		next := device
		e.status = model.Ready(next)
		e.last = &next
		if e.messageFromPoll {
			e.message = nil
			e.messageFromPoll = false
		}
		listeners := e.listeners
		e.mu.Unlock()

		for _, l := range listeners {
			l.OnStatus(ctx, prev, device)
		}
		return true
	}

	text := MsgUnknown
	clearToken := false
	switch {
	case errors.Is(err, gateway.ErrBadRequest):
		text = MsgNeedToken
	case errors.Is(err, gateway.ErrUnauthorized):
		text = MsgLoginFailed
		clearToken = true
	}
	log.Warn().Err(err).Str("message", text).Msg("status fetch failed; polling suspended")

	e.status = model.Errored()
	e.last = nil
	e.message = &model.Message{Severity: model.SeverityError, Text: text}
	e.messageFromPoll = true
	e.haltLocked()
	e.suspended = true
	e.mu.Unlock()

	if clearToken {
		if _, err := e.sessions.Revoke(ctx, token); err != nil {
			log.Error().Err(err).Msg("failed to clear rejected token")
		}
	}
	return false
}
