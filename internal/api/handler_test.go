package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tolppa-client/config"
	"tolppa-client/internal/model"
	"tolppa-client/internal/mw"
	"tolppa-client/internal/poller"
	"tolppa-client/internal/timer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeController is a mock implementation of the Controller interface.
type fakeController struct {
	snapshot  poller.Snapshot
	refreshes int

	SetTokenFunc  func(raw string) error
	LoginFunc     func(email, password string) (model.Message, error)
	LogoutFunc    func() error
	SubmitFunc    func(form timer.Form) (model.Message, error)
	DeleteAllFunc func() (model.Message, error)
}

func (f *fakeController) Snapshot() poller.Snapshot { return f.snapshot }

func (f *fakeController) SetToken(_ context.Context, raw string) error {
	if f.SetTokenFunc != nil {
		return f.SetTokenFunc(raw)
	}
	return nil
}

func (f *fakeController) Login(_ context.Context, email, password string) (model.Message, error) {
	return f.LoginFunc(email, password)
}

func (f *fakeController) Logout(context.Context) error {
	if f.LogoutFunc != nil {
		return f.LogoutFunc()
	}
	return nil
}

func (f *fakeController) SubmitTimer(_ context.Context, form timer.Form) (model.Message, error) {
	return f.SubmitFunc(form)
}

func (f *fakeController) DeleteAllTimers(context.Context) (model.Message, error) {
	return f.DeleteAllFunc()
}

func (f *fakeController) Refresh(context.Context) { f.refreshes++ }

var serverCfg = config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTL: time.Minute}

func fixedNow() time.Time { return time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC) }

func readySnapshot() poller.Snapshot {
	return poller.Snapshot{
		Status: model.Ready(model.DeviceStatus{
			State:        true,
			LicensePlate: "ABC-123",
			Temperature:  -5,
			Consumption:  900,
			Reservations: []model.Reservation{
				{DateStart: "01.01.2024", TimeStart: "10:00", DateEnd: "01.01.2024", TimeEnd: "11:00"},
			},
		}),
		Authenticated:  true,
		Polling:        true,
		ActionsEnabled: true,
	}
}

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.PushSubscription{}))
	return db
}

func setupRouter(t *testing.T, ctrl *fakeController, opts *webpush.Options) *gin.Engine {
	t.Helper()
	return NewRouter(NewHandler(ctrl, newSQLiteDB(t), opts, fixedNow), serverCfg)
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestGetStatus(t *testing.T) {
	r := setupRouter(t, &fakeController{snapshot: readySnapshot()}, nil)

	w := do(r, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(mw.RequestIDHeader))

	var resp statusResponse
	decode(t, w, &resp)
	assert.True(t, resp.Authenticated)
	assert.True(t, resp.ActionsEnabled)
	assert.Equal(t, model.PhaseReady, resp.View.Phase)
	assert.Equal(t, 30, resp.View.HeatedMinutes)
	assert.Equal(t, "1/2 timers", resp.View.TimerCount)
	assert.Equal(t, "Your tolppa is on! ABC-123 -5.0°C, 1/2 timers (heated for 30min, 900W)", resp.Summary)
}

func TestGetStatus_CachedUntilMutation(t *testing.T) {
	ctrl := &fakeController{snapshot: readySnapshot()}
	r := setupRouter(t, ctrl, nil)

	do(r, http.MethodGet, "/api/status", nil)
	ctrl.snapshot = poller.Snapshot{Status: model.Loading()}

	var resp statusResponse
	decode(t, do(r, http.MethodGet, "/api/status", nil), &resp)
	assert.Equal(t, model.PhaseReady, resp.View.Phase)

	require.Equal(t, http.StatusOK, do(r, http.MethodPut, "/api/token", tokenRequest{Token: ""}).Code)

	decode(t, do(r, http.MethodGet, "/api/status", nil), &resp)
	assert.Equal(t, model.PhaseLoading, resp.View.Phase)
	assert.False(t, resp.Authenticated)
}

func TestLogin(t *testing.T) {
	ctrl := &fakeController{
		LoginFunc: func(email, password string) (model.Message, error) {
			if password == "secret" {
				return model.Message{Severity: model.SeveritySuccess, Text: poller.MsgLoggedIn}, nil
			}
			if password == "broken-disk" {
				return model.Message{}, errors.New("persist token: disk full")
			}
			return model.Message{Severity: model.SeverityError, Text: poller.MsgLoginFailed}, nil
		},
	}
	r := setupRouter(t, ctrl, nil)

	w := do(r, http.MethodPost, "/api/login", loginRequest{Email: "a@b.c", Password: "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp actionResponse
	decode(t, w, &resp)
	assert.Equal(t, poller.MsgLoggedIn, resp.Message.Text)

	w = do(r, http.MethodPost, "/api/login", loginRequest{Email: "a@b.c", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/login", loginRequest{Email: "a@b.c", Password: "broken-disk"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = do(r, http.MethodPost, "/api/login", gin.H{"email": "a@b.c"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestLogout(t *testing.T) {
	called := false
	r := setupRouter(t, &fakeController{LogoutFunc: func() error { called = true; return nil }}, nil)

	w := do(r, http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, called)
}

func TestPutToken(t *testing.T) {
	var got string
	r := setupRouter(t, &fakeController{SetTokenFunc: func(raw string) error { got = raw; return nil }}, nil)

	w := do(r, http.MethodPut, "/api/token", tokenRequest{Token: "session=abc"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "session=abc", got)

	w = do(r, http.MethodPut, "/api/token", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostTimer(t *testing.T) {
	testCases := []struct {
		name string
		msg  model.Message
		err  error
		code int
	}{
		{"sent", model.Message{Severity: model.SeveritySuccess, Text: poller.MsgTimerSent}, nil, http.StatusOK},
		{"gateway rejected", model.Message{Severity: model.SeverityError, Text: "Request failed with status code 500"}, nil, http.StatusBadGateway},
		{"not authenticated", model.Message{}, poller.ErrActionUnavailable, http.StatusConflict},
		{"invalid form", model.Message{}, timer.ErrDuration, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got timer.Form
			ctrl := &fakeController{
				snapshot: readySnapshot(),
				SubmitFunc: func(form timer.Form) (model.Message, error) {
					got = form
					return tc.msg, tc.err
				},
			}
			r := setupRouter(t, ctrl, nil)

			w := do(r, http.MethodPost, "/api/timers", timer.Form{Quick: true, Duration: 90, Delay: 15, OptimizeForCost: true})
			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, timer.Form{Quick: true, Duration: 90, Delay: 15, OptimizeForCost: true}, got)

			if tc.err == nil {
				var resp actionResponse
				decode(t, w, &resp)
				assert.Equal(t, tc.msg, resp.Message)
			}
		})
	}
}

func TestDeleteTimers(t *testing.T) {
	r := setupRouter(t, &fakeController{
		snapshot: readySnapshot(),
		DeleteAllFunc: func() (model.Message, error) {
			return model.Message{Severity: model.SeveritySuccess, Text: poller.MsgTimersDeleted}, nil
		},
	}, nil)

	w := do(r, http.MethodDelete, "/api/timers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp actionResponse
	decode(t, w, &resp)
	assert.Equal(t, poller.MsgTimersDeleted, resp.Message.Text)
}

func TestRefresh(t *testing.T) {
	ctrl := &fakeController{}
	r := setupRouter(t, ctrl, nil)

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/refresh", nil).Code)
	assert.Zero(t, ctrl.refreshes)

	ctrl.snapshot = readySnapshot()
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/refresh", nil).Code)
	assert.Equal(t, 1, ctrl.refreshes)
}

func TestSubscriptions(t *testing.T) {
	r := setupRouter(t, &fakeController{}, nil)
	endpoint := "https://push.example.com/send/abc%3D"

	w := do(r, http.MethodPut, "/api/subscriptions", putSubscriptionRequest{Endpoint: endpoint, P256DH: "key", Auth: "auth"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPut, "/api/subscriptions", putSubscriptionRequest{Endpoint: endpoint, P256DH: "key2", Auth: "auth2"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	decode(t, w, &got)
	assert.Equal(t, endpoint, got["endpoint"])

	w = do(r, http.MethodDelete, "/api/subscriptions", deleteSubscriptionRequest{Endpoint: endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/api/subscriptions?endpoint="+url.QueryEscape("missing"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestGetVAPIDPublicKey(t *testing.T) {
	w := do(setupRouter(t, &fakeController{}, nil), http.MethodGet, "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(setupRouter(t, &fakeController{}, &webpush.Options{VAPIDPublicKey: "pub"}), http.MethodGet, "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"pub"}`, w.Body.String())
}
