package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// defaultTokenTTL is how long issued tokens stay valid when auth.token_ttl
// is not configured.
const defaultTokenTTL = 24 * time.Hour

// learnerIDHeader names the learner when authentication is disabled.
const learnerIDHeader = "X-Learner-ID"

type contextKey string

const learnerKey contextKey = "learner"

// learnerFromContext returns the authenticated learner ID, or "" when the
// request did not pass through the auth middleware.
func learnerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(learnerKey).(string)
	return id
}

// issueToken signs a learner token with the configured HMAC secret.
func (s *Server) issueToken(learnerID string, now time.Time) (token string, expiresAt time.Time, err error) {
	ttl := s.tokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	expiresAt = now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   learnerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    "ai-helper",
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.authSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("httpapi: sign token: %w", err)
	}
	return token, expiresAt, nil
}

// parseToken verifies a token and returns its learner subject.
func (s *Server) parseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.authSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("httpapi: verify token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("httpapi: token has no subject")
	}
	return claims.Subject, nil
}

// authMiddleware resolves the learner identity for every API request.
//
// With a JWT secret configured, requests must carry a Bearer token (or, for
// WebSocket upgrades where headers are awkward on some clients, a "token"
// query parameter). Without a secret, the identity comes from the
// X-Learner-ID header.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var learnerID string

		if len(s.authSecret) == 0 {
			learnerID = r.Header.Get(learnerIDHeader)
			if learnerID == "" {
				writeErrorMessage(w, http.StatusUnauthorized, "missing "+learnerIDHeader+" header")
				return
			}
		} else {
			token := bearerToken(r)
			if token == "" {
				writeErrorMessage(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			id, err := s.parseToken(token)
			if err != nil {
				s.logger.Debug("token rejected", "err", err)
				writeErrorMessage(w, http.StatusUnauthorized, "invalid token")
				return
			}
			learnerID = id
		}

		ctx := context.WithValue(r.Context(), learnerKey, learnerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from the Authorization header or the
// "token" query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			return rest
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
