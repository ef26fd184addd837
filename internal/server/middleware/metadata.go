package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/othnielvtf/livechat/internal/auth"
	"github.com/othnielvtf/livechat/pkg/state"
)

type contextKey string

const reqMetaKey = contextKey("r-metadata")

// RequestMetadata accumulates per-request facts as the chain runs: the
// client address, the credential it presented, and the identity the
// handshake middleware resolved (nil for anonymous connections).
type RequestMetadata struct {
	IP         string
	Credential auth.Credential
	Identity   *state.Identity
}

func ReqMetadataFrom(ctx context.Context) (*RequestMetadata, bool) {
	reqMeta, ok := ctx.Value(reqMetaKey).(*RequestMetadata)
	return reqMeta, ok
}

// RequestMetadataMiddleware seeds the metadata struct. It must be the
// first middleware in the chain.
func RequestMetadataMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta := &RequestMetadata{}

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr // Fallback
			}
			reqMeta.IP = ip
			reqMeta.Credential = credentialFrom(r)

			ctx := context.WithValue(r.Context(), reqMetaKey, reqMeta)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// credentialFrom pulls whatever the client offered: a bearer token from
// the Authorization header or token query param, or the legacy raw
// userId/username pair.
func credentialFrom(r *http.Request) auth.Credential {
	cred := auth.Credential{}
	if header := r.Header.Get("Authorization"); header != "" {
		cred.Token = strings.TrimPrefix(header, "Bearer ")
	}
	query := r.URL.Query()
	if cred.Token == "" {
		cred.Token = query.Get("token")
	}
	cred.UserID = query.Get("userId")
	cred.Username = query.Get("username")
	return cred
}
