package middleware

import (
	"log/slog"
	"net/http"

	"github.com/othnielvtf/livechat/pkg/config"
)

type UserConnectionCounter func(userID string) int
type UserConnectionCycler func(userID string)

// NewConnectionLimiter caps concurrent connections per authenticated
// user. Anonymous connections carry no user key and pass through.
func NewConnectionLimiter(
	logger *slog.Logger,
	counter UserConnectionCounter,
	cycler UserConnectionCycler,
	cfg config.ConnectionLimitConfig,
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.MaxPerUser <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				logger.Error("connection limiter found no request metadata; check middleware order")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if reqMeta.Identity == nil {
				next.ServeHTTP(w, r)
				return
			}

			userID := reqMeta.Identity.UserID
			count := counter(userID)
			if count < cfg.MaxPerUser {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("user connection limit reached",
				slog.String("userID", userID),
				slog.Int("count", count),
			)
			switch cfg.Mode {
			case "cycle":
				cycler(userID)
				next.ServeHTTP(w, r)
			case "reject":
				http.Error(w, "Too Many Active Connections", http.StatusTooManyRequests)
			default:
				logger.Error("invalid connection limit mode", slog.String("mode", cfg.Mode))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		})
	}
}
