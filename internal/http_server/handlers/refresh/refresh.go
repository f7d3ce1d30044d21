package refresh

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"taskmaster/internal/auth"
	resp "taskmaster/internal/lib/api/response"
	"taskmaster/internal/lib/jwt"
	sl "taskmaster/internal/lib/logger/sl"
	"taskmaster/internal/middleware/authn"
	"taskmaster/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	models.TokenPair
}

type Refresher interface {
	RefreshBothTokens(ctx context.Context, claims *jwt.Claims) (models.TokenPair, error)
}

// New rotates both tokens. It expects authn.Refresh in front of it.
func New(log *slog.Logger, refresher Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, _ := authn.ClaimsFrom(r.Context())

		pair, err := refresher.RefreshBothTokens(r.Context(), claims)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid token"))

				return
			}

			log.Error("failed to refresh tokens", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Debug("tokens refreshed")

		render.JSON(w, r, Response{
			Response:  resp.OK(),
			TokenPair: pair,
		})
	}
}
