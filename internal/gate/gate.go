// Package gate guards room operations: it decides, per operation, whether
// a connection may touch a channel, given its resolved identity and any
// authorization grant the operation carries.
package gate

import (
	"crypto/subtle"
	"log/slog"

	"github.com/othnielvtf/livechat/internal/auth"
	"github.com/othnielvtf/livechat/pkg/channel"
	"github.com/othnielvtf/livechat/pkg/signature"
	"github.com/othnielvtf/livechat/pkg/state"
)

// Op is one gated operation. Grant fields are only populated on joins;
// Member reports whether the connection already belongs to the channel
// through a previously permitted join.
type Op struct {
	ConnID      string
	Channel     string
	Auth        string
	ChannelData string
	Member      bool
}

type Gate struct {
	signer *signature.Signer
	logger *slog.Logger
}

func New(logger *slog.Logger, signer *signature.Signer) *Gate {
	return &Gate{
		signer: signer,
		logger: logger.With(slog.String("component", "connection_gate")),
	}
}

// Permit allows or denies one operation. Deny is terminal for the
// operation only; disconnect policy belongs to the caller.
func (g *Gate) Permit(identity *state.Identity, op Op) error {
	class := channel.Classify(op.Channel)
	if !class.Restricted() {
		return nil
	}
	if op.Member {
		// Membership was established through a permitted join.
		return nil
	}

	if op.Auth != "" {
		return g.verifyGrant(class, op)
	}

	if class == channel.Presence {
		// Presence membership needs the member payload, which only
		// arrives with a grant.
		return auth.NewError(auth.KindInvalidSignature, "presence channels require an authorization grant")
	}
	if identity == nil {
		return auth.NewError(auth.KindInvalidSignature, "authorization grant or identity required")
	}
	return nil
}

func (g *Gate) verifyGrant(class channel.Class, op Op) error {
	if class == channel.Presence && op.ChannelData == "" {
		return auth.NewError(auth.KindMissingPresenceData, "channel data is required for presence channels")
	}

	expected := g.signer.Sign(op.ConnID, op.Channel, op.ChannelData)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(op.Auth)) != 1 {
		g.logger.Warn("grant signature mismatch",
			slog.String("connID", op.ConnID),
			slog.String("channel", op.Channel),
		)
		return auth.NewError(auth.KindInvalidSignature, "authorization signature mismatch")
	}
	return nil
}
