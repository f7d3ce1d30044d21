package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskmaster/internal/auth"
	"taskmaster/internal/config"
	"taskmaster/internal/http_server/router"
	"taskmaster/internal/lib/jwt"
	sl "taskmaster/internal/lib/logger/sl"
	"taskmaster/internal/lib/validation"
	"taskmaster/internal/mail"
	"taskmaster/internal/rabbitmq"
	"taskmaster/internal/storage/postgres"
	"taskmaster/internal/storage/redis"
	"taskmaster/internal/tasks"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting taskmaster", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg.PostgresDSN())
	if err != nil {
		log.Error("failed to connect postgres", sl.Err(err))
		os.Exit(1)
	}
	defer storage.Close()

	if err := storage.Migrate(ctx); err != nil {
		log.Error("failed to migrate postgres", sl.Err(err))
		os.Exit(1)
	}

	cache, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", sl.Err(err))
		os.Exit(1)
	}
	defer cache.Close()

	mailer, closeMailer, err := setupMailer(cfg)
	if err != nil {
		log.Error("failed to set up mail transport", sl.Err(err), slog.String("transport", cfg.Mail.Transport))
		os.Exit(1)
	}
	defer closeMailer()

	issuer := jwt.NewIssuer(
		cfg.Tokens.AccessTokenSecret,
		cfg.Tokens.AccessTokenTTL,
		cfg.Tokens.RefreshTokenSecret,
		cfg.Tokens.RefreshTokenTTL,
	)

	authService := auth.New(log, storage, cache, mailer, issuer, cfg.OTP.Length, cfg.OTP.Expiry)
	taskService := tasks.New(log, storage)

	handler := router.New(router.Deps{
		Log:            log,
		Validate:       validation.New(),
		Auth:           authService,
		Tasks:          taskService,
		Tokens:         issuer,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimit:      !cfg.HTTPServer.DisableRateLimit,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}
}

// setupMailer picks the OTP transport. With rabbitmq the mail is queued
// for cmd/mail_sender; with smtp it is sent inline.
func setupMailer(cfg *config.Config) (auth.Mailer, func(), error) {
	switch cfg.Mail.Transport {
	case config.MailTransportRabbitMQ:
		broker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			return nil, nil, err
		}
		return broker, broker.Close, nil
	default:
		sender := mail.NewSMTPSender(
			cfg.Mail.Host,
			cfg.Mail.Port,
			cfg.Mail.Username,
			cfg.Mail.Password,
			cfg.Mail.From,
		)
		return sender, func() {}, nil
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
