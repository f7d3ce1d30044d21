// Package authn authenticates requests by their bearer token.
package authn

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	resp "taskmaster/internal/lib/api/response"
	"taskmaster/internal/lib/jwt"
	sl "taskmaster/internal/lib/logger/sl"
	"taskmaster/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type TokenParser interface {
	Parse(tokenStr string, kind models.TokenKind) (*jwt.Claims, error)
	ParseAny(tokenStr string) (*jwt.Claims, error)
}

type ctxKey struct{}

// Access admits requests carrying a valid access token.
func Access(log *slog.Logger, parser TokenParser) func(http.Handler) http.Handler {
	return guard(log, func(token string) (*jwt.Claims, error) {
		return parser.Parse(token, models.TokenAccess)
	})
}

// Refresh admits requests carrying a valid refresh token.
func Refresh(log *slog.Logger, parser TokenParser) func(http.Handler) http.Handler {
	return guard(log, func(token string) (*jwt.Claims, error) {
		return parser.Parse(token, models.TokenRefresh)
	})
}

// Any admits either kind of token.
func Any(log *slog.Logger, parser TokenParser) func(http.Handler) http.Handler {
	return guard(log, parser.ParseAny)
}

func guard(log *slog.Logger, parse func(string) (*jwt.Claims, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token, ok := BearerToken(r)
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Unauthorized"))

				return
			}

			claims, err := parse(token)
			if err != nil {
				log.Info("rejected token", sl.Err(err))

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid token"))

				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}

func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, claims)
}

// ClaimsFrom returns the claims stored by one of the middlewares.
func ClaimsFrom(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(ctxKey{}).(*jwt.Claims)
	return claims, ok && claims != nil
}

// UserID is the subject of the authenticated token, or "".
func UserID(ctx context.Context) string {
	claims, ok := ClaimsFrom(ctx)
	if !ok {
		return ""
	}
	return claims.Subject
}
