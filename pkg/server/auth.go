package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/balkonsolar/balkonsolar/pkg/log"
)

type contextKey string

const adminEmailContextKey contextKey = "adminEmail"

// adminMiddleware only lets requests through that carry a Google ID token
// for one of the admin emails.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if s.bypassAuth {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Ctx(ctx).WarnContext(ctx, "missing auth header")
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
			writeJSONError(w, "invalid auth header", http.StatusBadRequest)
			return
		}

		email, err := s.authenticateToken(ctx, token)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "auth token validation failed", slog.Any("error", err))
			writeJSONError(w, "invalid auth token", http.StatusUnauthorized)
			return
		}
		if !s.isAdmin(email) {
			log.Ctx(ctx).WarnContext(ctx, "not an admin", slog.String("email", email))
			writeJSONError(w, "forbidden", http.StatusForbidden)
			return
		}

		ctx = log.WithAttrs(ctx, slog.String("authEmail", email))
		ctx = context.WithValue(ctx, adminEmailContextKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) isAdmin(email string) bool {
	return email != "" && slices.Contains(s.adminEmails, email)
}

func getAdminEmail(r *http.Request) string {
	email, _ := r.Context().Value(adminEmailContextKey).(string)
	return email
}

func (s *Server) authenticateToken(ctx context.Context, token string) (string, error) {
	if s.verifier == nil {
		return "", errors.New("no oidc audience configured")
	}
	idToken, err := s.verifier(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to verify id token: %w", err)
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to parse id token claims: %w", err)
	}
	if !claims.EmailVerified {
		return "", fmt.Errorf("email not verified: %s", claims.Email)
	}
	return claims.Email, nil
}
