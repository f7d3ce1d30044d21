package verifyotp

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
	"taskmaster/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric,min=4,max=9"`
}

type Response struct {
	resp.Response
	models.TokenPair
}

type Verifier interface {
	VerifyOTP(ctx context.Context, email, code string) (models.TokenPair, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	verifier Verifier,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verifyotp.New"

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
		req.OTP = strings.TrimSpace(req.OTP)

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Info("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		pair, err := verifier.VerifyOTP(ctx, req.Email, req.OTP)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidOTP) {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("Invalid OTP"))

				return
			}

			log.Error("failed to verify otp", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		ResponseOK(w, r, pair)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, pair models.TokenPair) {
	render.JSON(w, r, Response{
		Response:  resp.OK(),
		TokenPair: pair,
	})
}
