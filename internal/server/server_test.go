package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/othnielvtf/livechat/pkg/config"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestApp() *App {
	cfg := &config.Config{
		Server: config.ServerConfig{Address: ":0"},
		Auth: config.AuthConfig{
			AppKey:    "abc",
			AppSecret: "xyz",
			JWTSecret: "test-jwt-secret",
		},
		History: config.HistoryConfig{Limit: 100},
	}
	return NewApp(newTestLogger(), context.Background(), cfg, nil)
}

func postChannelAuth(t *testing.T, app *App, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/channel", strings.NewReader(body))
	rec := httptest.NewRecorder()
	app.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestChannelAuthEndpoint(t *testing.T) {
	app := newTestApp()
	rec := postChannelAuth(t, app, `{"socket_id":"123.456","channel_name":"private-test"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var grant struct {
		Auth        string `json:"auth"`
		ChannelData string `json:"channel_data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &grant); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	want := "abc:b78958f41bb58dcfd4177d01b6ee3157448c66e7524ccdc640027df73b173684"
	if grant.Auth != want {
		t.Errorf("auth = %q, want %q", grant.Auth, want)
	}
	if grant.ChannelData != "" {
		t.Errorf("private grant carried channel_data %q", grant.ChannelData)
	}
}

func TestChannelAuthEndpointPresence(t *testing.T) {
	app := newTestApp()
	rec := postChannelAuth(t, app,
		`{"socket_id":"1.1","channel_name":"presence-lobby","user_id":"u1","user_info":{"name":"Al"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var grant struct {
		ChannelData string `json:"channel_data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &grant)
	if grant.ChannelData != `{"user_id":"u1","user_info":{"name":"Al"}}` {
		t.Errorf("channel_data = %q", grant.ChannelData)
	}
}

func TestChannelAuthEndpointErrors(t *testing.T) {
	app := newTestApp()
	cases := []struct {
		name     string
		body     string
		wantCode int
		wantKind string
	}{
		{"missing fields", `{"channel_name":"private-x"}`, http.StatusBadRequest, "invalid_request"},
		{"public channel", `{"socket_id":"1.1","channel_name":"lobby"}`, http.StatusBadRequest, "channel_not_restricted"},
		{"presence without data", `{"socket_id":"1.1","channel_name":"presence-x"}`, http.StatusBadRequest, "missing_presence_data"},
		{"denied", `{"socket_id":"1.1","channel_name":"private-user-u2","user_id":"u1"}`, http.StatusForbidden, "access_denied"},
		{"garbage body", `{{`, http.StatusBadRequest, "invalid_request"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := postChannelAuth(t, app, c.body)
			if rec.Code != c.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, c.wantCode)
			}
			var resp struct {
				Error string `json:"error"`
			}
			json.Unmarshal(rec.Body.Bytes(), &resp)
			if resp.Error != c.wantKind {
				t.Errorf("error = %q, want %q", resp.Error, c.wantKind)
			}
		})
	}
}

func TestChannelAuthEndpointMethodNotAllowed(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest(http.MethodGet, "/auth/channel", nil)
	rec := httptest.NewRecorder()
	app.http.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandshakeRejectsBadCredential(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest(http.MethodGet, "/ws?token=not-a-jwt", nil)
	rec := httptest.NewRecorder()
	app.http.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
