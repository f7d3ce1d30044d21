package router

import (
	"log/slog"
	"net/http"

	"taskmaster/internal/http_server/handlers/initiate"
	"taskmaster/internal/http_server/handlers/me"
	"taskmaster/internal/http_server/handlers/refresh"
	"taskmaster/internal/http_server/handlers/refreshaccess"
	"taskmaster/internal/http_server/handlers/tasks"
	"taskmaster/internal/http_server/handlers/verifyotp"
	resp "taskmaster/internal/lib/api/response"
	"taskmaster/internal/middleware/authn"
	"taskmaster/internal/middleware/ratelimit"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type AuthService interface {
	initiate.Initiator
	verifyotp.Verifier
	refresh.Refresher
	refreshaccess.Refresher
	me.ProfileProvider
}

type Deps struct {
	Log            *slog.Logger
	Validate       *validator.Validate
	Auth           AuthService
	Tasks          tasks.Service
	Tokens         authn.TokenParser
	AllowedOrigins []string
	// RateLimit guards the OTP endpoints when set.
	RateLimit bool
}

func New(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, resp.OK())
	})

	r.Route("/auth", func(r chi.Router) {
		initiateMW, verifyMW, refreshMW := passthrough, passthrough, passthrough
		if d.RateLimit {
			initiateMW, verifyMW, refreshMW = ratelimit.Initiate(), ratelimit.VerifyOTP(), ratelimit.Refresh()
		}

		r.With(initiateMW).Post("/initiate", initiate.New(d.Log, d.Validate, d.Auth))
		r.With(verifyMW).Post("/verify-otp", verifyotp.New(d.Log, d.Validate, d.Auth))
		r.With(refreshMW, authn.Refresh(d.Log, d.Tokens)).Get("/refresh", refresh.New(d.Log, d.Auth))
		r.With(refreshMW, authn.Any(d.Log, d.Tokens)).Get("/refresh-access", refreshaccess.New(d.Log, d.Auth))
		r.With(authn.Access(d.Log, d.Tokens)).Get("/me", me.New(d.Log, d.Auth))
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(authn.Access(d.Log, d.Tokens))

		r.Post("/", tasks.Create(d.Log, d.Validate, d.Tasks))
		r.Get("/", tasks.List(d.Log, d.Validate, d.Tasks))
		r.Patch("/reorder", tasks.Reorder(d.Log, d.Validate, d.Tasks))
		r.Get("/{id}", tasks.Get(d.Log, d.Tasks))
		r.Patch("/{id}", tasks.Update(d.Log, d.Validate, d.Tasks))
		r.Delete("/{id}", tasks.Delete(d.Log, d.Tasks))
		r.Patch("/{id}/toggle-complete", tasks.ToggleComplete(d.Log, d.Tasks))
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
