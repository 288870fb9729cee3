package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/agentstation/mirrorsync/pkg/errors"
)

// JWTConfig holds bearer-token verification settings.
type JWTConfig struct {
	// Secret is the HMAC key. Authentication is disabled when empty.
	Secret string
	// Issuer, when set, must match the iss claim.
	Issuer string
	// Audience, when set, must be listed in the aud claim.
	Audience string
	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration
}

// Enabled reports whether tokens are verified.
func (c JWTConfig) Enabled() bool {
	return c.Secret != ""
}

type subjectKey struct{}

// Subject returns the verified token subject stored by JWT.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// JWT rejects requests without a valid HMAC-signed bearer token. Tokens
// must carry an expiry.
func JWT(cfg JWTConfig, logger *zerolog.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled() {
		logger.Warn().Msg("API authentication disabled: no JWT secret configured")
		return func(next http.Handler) http.Handler { return next }
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)
	secret := []byte(cfg.Secret)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "No token provided",
					"Provide a token in the Authorization header as 'Bearer <token>'")
				return
			}

			claims := &jwt.RegisteredClaims{}
			if _, err := parser.ParseWithClaims(token, claims, keyFunc); err != nil {
				authErr := errors.NewAuthenticationError("api", "jwt", "invalid token", err)
				logger.Warn().
					Err(authErr).
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Msg("Authentication failed")
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", tokenErrorDetail(err))
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokenErrorDetail(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "token is missing a required claim"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "token was issued for another service"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "token signature is invalid"
	default:
		return "token could not be verified"
	}
}
