package me

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"taskmaster/internal/auth"
	resp "taskmaster/internal/lib/api/response"
	sl "taskmaster/internal/lib/logger/sl"
	"taskmaster/internal/middleware/authn"
	"taskmaster/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	User models.User `json:"user"`
}

type ProfileProvider interface {
	UserProfile(ctx context.Context, userID string) (models.User, error)
}

func New(log *slog.Logger, profiles ProfileProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.me.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, err := profiles.UserProfile(r.Context(), authn.UserID(r.Context()))
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid token"))

				return
			}

			log.Error("failed to load profile", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			User:     user,
		})
	}
}
