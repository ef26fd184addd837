package channel_test

import (
	"testing"

	"github.com/othnielvtf/livechat/pkg/channel"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		want channel.Class
	}{
		{"lobby", channel.Public},
		{"private-room-1", channel.Private},
		{"presence-lobby", channel.Presence},
		{"privateers", channel.Public},
		{"presence-", channel.Presence},
		{"", channel.Public},
	}
	for _, c := range cases {
		if got := channel.Classify(c.name); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestRestricted(t *testing.T) {
	if channel.Public.Restricted() {
		t.Error("public channels must not be restricted")
	}
	if !channel.Private.Restricted() || !channel.Presence.Restricted() {
		t.Error("private and presence channels must be restricted")
	}
}
