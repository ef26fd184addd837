package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/othnielvtf/livechat/pkg/channel"
	"github.com/othnielvtf/livechat/pkg/signature"
)

// AccessController decides whether a user may enter a restricted channel.
// It may perform blocking I/O and is never invoked under registry locks.
type AccessController func(ctx context.Context, userID, channelName string) (bool, error)

// ChannelAuthRequest is the authorization endpoint's request body.
type ChannelAuthRequest struct {
	SocketID    string          `json:"socket_id"`
	ChannelName string          `json:"channel_name"`
	UserID      string          `json:"user_id,omitempty"`
	UserInfo    json.RawMessage `json:"user_info,omitempty"`
}

// Grant is the signature a client replays in its join request, plus the
// canonical member payload for presence channels. Ephemeral; nothing is
// persisted.
type Grant struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

// Authorizer validates channel authorization requests and issues grants.
type Authorizer struct {
	signer    *signature.Signer
	canAccess AccessController
	logger    *slog.Logger
}

func NewAuthorizer(logger *slog.Logger, signer *signature.Signer, canAccess AccessController) *Authorizer {
	if canAccess == nil {
		canAccess = DefaultAccessPolicy
	}
	return &Authorizer{
		signer:    signer,
		canAccess: canAccess,
		logger:    logger.With(slog.String("component", "authorizer")),
	}
}

// Authorize applies the channel authorization rules in order and delegates
// to the signer. Public channels never get a grant.
func (a *Authorizer) Authorize(ctx context.Context, req ChannelAuthRequest) (Grant, error) {
	if req.SocketID == "" || req.ChannelName == "" {
		return Grant{}, NewError(KindInvalidRequest, "socket id and channel name are required")
	}

	class := channel.Classify(req.ChannelName)
	if !class.Restricted() {
		return Grant{}, NewError(KindChannelNotRestricted, "only private or presence channels require authorization")
	}

	if class == channel.Presence && (req.UserID == "" || len(req.UserInfo) == 0) {
		return Grant{}, NewError(KindMissingPresenceData, "user id and user info are required for presence channels")
	}

	if req.UserID != "" {
		allowed, err := a.canAccess(ctx, req.UserID, req.ChannelName)
		if err != nil {
			return Grant{}, WrapError(KindAccessDenied, "access check failed", err)
		}
		if !allowed {
			a.logger.Info("channel access denied",
				slog.String("userID", req.UserID),
				slog.String("channel", req.ChannelName),
			)
			return Grant{}, NewError(KindAccessDenied, "access to channel denied")
		}
	}

	var channelData string
	if class == channel.Presence {
		data, err := signature.ChannelData(req.UserID, req.UserInfo)
		if err != nil {
			return Grant{}, WrapError(KindInvalidRequest, "user info is not valid JSON", err)
		}
		channelData = data
	}

	auth := a.signer.Sign(req.SocketID, req.ChannelName, channelData)
	return Grant{Auth: auth, ChannelData: channelData}, nil
}

// DefaultAccessPolicy is the development policy: a private-user-<id>
// channel belongs to that user alone, everything else restricted is open.
// Real deployments plug in their own AccessController.
func DefaultAccessPolicy(_ context.Context, userID, channelName string) (bool, error) {
	if target, ok := strings.CutPrefix(channelName, "private-user-"); ok {
		return userID == target, nil
	}
	return channel.Classify(channelName).Restricted(), nil
}
