package auth

import (
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/othnielvtf/livechat/pkg/state"
)

// Credential is what a connecting client presents at handshake: a bearer
// token, or a raw pair for the legacy unauthenticated path.
type Credential struct {
	Token    string
	UserID   string
	Username string
}

func (c Credential) Empty() bool {
	return c.Token == "" && c.UserID == "" && c.Username == ""
}

// identityClaims is the bearer token claim set.
type identityClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Resolver maps a presented credential to a verified identity. Stateless;
// memoization is per connection and lives with the session.
type Resolver struct {
	jwtSecret []byte
	logger    *slog.Logger
}

func NewResolver(logger *slog.Logger, jwtSecret string) *Resolver {
	return &Resolver{
		jwtSecret: []byte(jwtSecret),
		logger:    logger.With(slog.String("component", "identity_resolver")),
	}
}

// Resolve verifies the credential and returns the identity it proves.
// A bearer token must carry a valid HMAC signature and unexpired claims;
// failure is fatal to this attempt only.
func (r *Resolver) Resolve(cred Credential) (state.Identity, error) {
	if cred.Token != "" {
		return r.resolveToken(cred.Token)
	}
	if cred.UserID != "" && cred.Username != "" {
		return state.Identity{UserID: cred.UserID, Username: cred.Username}, nil
	}
	return state.Identity{}, NewError(KindInvalidCredential, "no usable credential presented")
}

func (r *Resolver) resolveToken(tokenString string) (state.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &identityClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return r.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		r.logger.Warn("bearer token rejected", slog.Any("error", err))
		return state.Identity{}, WrapError(KindInvalidCredential, "bearer token verification failed", err)
	}

	claims, ok := token.Claims.(*identityClaims)
	if !ok || claims.Subject == "" {
		return state.Identity{}, NewError(KindInvalidCredential, "bearer token missing subject")
	}

	username := claims.Username
	if username == "" {
		username = claims.Subject
	}
	return state.Identity{UserID: claims.Subject, Username: username}, nil
}
