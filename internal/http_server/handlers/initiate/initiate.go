package initiate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskmaster/internal/auth"
	resp "taskmaster/internal/lib/api/response"
	sl "taskmaster/internal/lib/logger/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const MessageSent = "OTP sent successfully"

type Request struct {
	Email string `json:"email" validate:"required,email"`
}

type Initiator interface {
	Initiate(ctx context.Context, email string) error
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	initiator Initiator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.initiate.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		req.Email = strings.ToLower(strings.TrimSpace(req.Email))

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Info("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		if err := initiator.Initiate(ctx, req.Email); err != nil {
			if errors.Is(err, auth.ErrMailDelivery) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Failed to send OTP"))

				return
			}

			log.Error("failed to initiate auth", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, resp.OKMessage(MessageSent))
	}
}
