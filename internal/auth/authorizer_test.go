package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/othnielvtf/livechat/internal/auth"
	"github.com/othnielvtf/livechat/pkg/signature"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func allowAll(context.Context, string, string) (bool, error) { return true, nil }

func newTestAuthorizer(canAccess auth.AccessController) *auth.Authorizer {
	signer := signature.NewSigner("abc", "xyz")
	return auth.NewAuthorizer(newTestLogger(), signer, canAccess)
}

func kindOf(t *testing.T, err error) auth.Kind {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	return auth.KindOf(err)
}

func TestAuthorizeRequiresSocketAndChannel(t *testing.T) {
	a := newTestAuthorizer(allowAll)
	cases := []auth.ChannelAuthRequest{
		{SocketID: "", ChannelName: "private-x"},
		{SocketID: "1.1", ChannelName: ""},
	}
	for _, req := range cases {
		_, err := a.Authorize(context.Background(), req)
		if got := kindOf(t, err); got != auth.KindInvalidRequest {
			t.Errorf("Authorize(%+v) kind = %v, want invalid_request", req, got)
		}
	}
}

func TestAuthorizeRejectsPublicChannels(t *testing.T) {
	a := newTestAuthorizer(allowAll)
	_, err := a.Authorize(context.Background(), auth.ChannelAuthRequest{
		SocketID: "1.1", ChannelName: "lobby",
	})
	if got := kindOf(t, err); got != auth.KindChannelNotRestricted {
		t.Errorf("kind = %v, want channel_not_restricted", got)
	}
}

func TestAuthorizePresenceRequiresUserData(t *testing.T) {
	a := newTestAuthorizer(allowAll)
	cases := []auth.ChannelAuthRequest{
		{SocketID: "1.1", ChannelName: "presence-lobby"},
		{SocketID: "1.1", ChannelName: "presence-lobby", UserID: "u1"},
		{SocketID: "1.1", ChannelName: "presence-lobby", UserInfo: json.RawMessage(`{"name":"Al"}`)},
	}
	for _, req := range cases {
		_, err := a.Authorize(context.Background(), req)
		if got := kindOf(t, err); got != auth.KindMissingPresenceData {
			t.Errorf("Authorize(%+v) kind = %v, want missing_presence_data", req, got)
		}
	}
}

func TestAuthorizeAccessDenied(t *testing.T) {
	deny := func(context.Context, string, string) (bool, error) { return false, nil }
	a := newTestAuthorizer(deny)
	_, err := a.Authorize(context.Background(), auth.ChannelAuthRequest{
		SocketID: "1.1", ChannelName: "private-room-1", UserID: "u1",
	})
	if got := kindOf(t, err); got != auth.KindAccessDenied {
		t.Errorf("kind = %v, want access_denied", got)
	}
}

func TestAuthorizeAccessCheckError(t *testing.T) {
	failing := func(context.Context, string, string) (bool, error) {
		return false, errors.New("backend unreachable")
	}
	a := newTestAuthorizer(failing)
	_, err := a.Authorize(context.Background(), auth.ChannelAuthRequest{
		SocketID: "1.1", ChannelName: "private-room-1", UserID: "u1",
	})
	if got := kindOf(t, err); got != auth.KindAccessDenied {
		t.Errorf("kind = %v, want access_denied", got)
	}
}

func TestAuthorizePrivateChannel(t *testing.T) {
	a := newTestAuthorizer(allowAll)
	grant, err := a.Authorize(context.Background(), auth.ChannelAuthRequest{
		SocketID: "123.456", ChannelName: "private-test",
	})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	want := "abc:b78958f41bb58dcfd4177d01b6ee3157448c66e7524ccdc640027df73b173684"
	if grant.Auth != want {
		t.Errorf("Auth = %q, want %q", grant.Auth, want)
	}
	if grant.ChannelData != "" {
		t.Errorf("private grant carries channel data: %q", grant.ChannelData)
	}
}

func TestAuthorizePresenceChannel(t *testing.T) {
	a := newTestAuthorizer(allowAll)
	grant, err := a.Authorize(context.Background(), auth.ChannelAuthRequest{
		SocketID:    "1.1",
		ChannelName: "presence-lobby",
		UserID:      "u1",
		UserInfo:    json.RawMessage(`{"name":"Al"}`),
	})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	wantData := `{"user_id":"u1","user_info":{"name":"Al"}}`
	if grant.ChannelData != wantData {
		t.Errorf("ChannelData = %q, want %q", grant.ChannelData, wantData)
	}
	// The member payload is folded into the signed string.
	signer := signature.NewSigner("abc", "xyz")
	if want := signer.Sign("1.1", "presence-lobby", wantData); grant.Auth != want {
		t.Errorf("Auth = %q, want %q", grant.Auth, want)
	}
}

func TestDefaultAccessPolicy(t *testing.T) {
	cases := []struct {
		userID  string
		channel string
		want    bool
	}{
		{"u1", "private-user-u1", true},
		{"u2", "private-user-u1", false},
		{"u1", "private-room-7", true},
		{"u1", "presence-lobby", true},
		{"u1", "lobby", false},
	}
	for _, c := range cases {
		got, err := auth.DefaultAccessPolicy(context.Background(), c.userID, c.channel)
		if err != nil {
			t.Fatalf("DefaultAccessPolicy(%q, %q) failed: %v", c.userID, c.channel, err)
		}
		if got != c.want {
			t.Errorf("DefaultAccessPolicy(%q, %q) = %v, want %v", c.userID, c.channel, got, c.want)
		}
	}
}
