// Package signature implements the channel authorization signature scheme.
// The output must be byte-identical across implementations for identical
// inputs; a trusted server and this gateway agree on grants without sharing
// code.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes authorization signatures under a shared app secret.
// It is pure and safe for concurrent use.
type Signer struct {
	appKey string
	secret []byte
}

func NewSigner(appKey, appSecret string) *Signer {
	return &Signer{appKey: appKey, secret: []byte(appSecret)}
}

// Sign computes the grant signature for a connection and channel. For
// presence channels channelData carries the canonical member payload and is
// folded into the signed string; pass "" otherwise.
//
// The string to sign is "connID:channel" or "connID:channel:channelData",
// and the result is "appKey:" + hex(HMAC-SHA256(secret, stringToSign)).
func (s *Signer) Sign(connID, channelName, channelData string) string {
	stringToSign := connID + ":" + channelName
	if channelData != "" {
		stringToSign += ":" + channelData
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(stringToSign))
	return s.appKey + ":" + hex.EncodeToString(mac.Sum(nil))
}
