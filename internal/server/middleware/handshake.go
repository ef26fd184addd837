package middleware

import (
	"log/slog"
	"net/http"

	"github.com/othnielvtf/livechat/internal/auth"
)

// NewHandshakeAuth resolves the connecting client's identity exactly once,
// before the upgrade. Connections presenting no credential proceed
// anonymously and are confined to public channels by the connection gate;
// a presented credential that fails verification rejects the handshake.
func NewHandshakeAuth(logger *slog.Logger, resolver *auth.Resolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			if reqMeta.Credential.Empty() {
				logger.Warn("anonymous connection", slog.String("ip", reqMeta.IP))
				next.ServeHTTP(w, r)
				return
			}

			identity, err := resolver.Resolve(reqMeta.Credential)
			if err != nil {
				logger.Warn("handshake credential rejected",
					slog.String("ip", reqMeta.IP),
					slog.Any("error", err),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.Identity = &identity
			next.ServeHTTP(w, r)
		})
	}
}
