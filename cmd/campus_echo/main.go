package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus_echo/internal/auth"
	"campus_echo/internal/campus"
	"campus_echo/internal/clients/assistant"
	"campus_echo/internal/clients/stt"
	"campus_echo/internal/config"
	"campus_echo/internal/http_server/middleware/ratelimit"
	"campus_echo/internal/http_server/router"
	"campus_echo/internal/lib/jwt"
	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/lib/validation"
	"campus_echo/internal/rabbitmq"
	"campus_echo/internal/storage/memory"
	"campus_echo/internal/storage/postgres"
	"campus_echo/internal/storage/redis"
	"campus_echo/internal/voice"

	"github.com/joho/godotenv"
)

type store interface {
	auth.AccountSaver
	auth.AccountProvider
	auth.TokenStore
	voice.QueryStore
	campus.Store
	Close()
}

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad(configPath())

	log := setupLogger(cfg.Env)

	log.Info("starting campus echo", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("campus echo stopped with error", sl.Err(err))
		stop()
		os.Exit(1)
	}

	log.Info("campus echo stopped")
}

// run builds the collaborators, serves until ctx is done and closes them on return.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	const op = "main.run"

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	storage, err := setupStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: init storage: %w", op, err)
	}
	defer storage.Close()

	var counter ratelimit.Counter
	if cfg.Redis.Addr != "" {
		rdb, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("%s: connect redis: %w", op, err)
		}
		defer rdb.Close()

		counter = rdb
	} else {
		log.Warn("redis is not configured, rate limits are kept in process memory")
	}

	var mail auth.MailPublisher
	if cfg.RabbitMQ.URL != "" {
		msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			return fmt.Errorf("%s: connect rabbitmq: %w", op, err)
		}
		defer msgBroker.Close()

		mail = msgBroker
	} else {
		log.Warn("rabbitmq is not configured, emails will not be sent")
	}

	var ai voice.Assistant
	if cfg.Assistant.URL != "" {
		ai = assistant.New(log, cfg.Assistant)
	} else {
		log.Warn("assistant is not configured, using local responses")
	}

	codec := jwt.NewCodec(cfg.Tokens.AccessTokenSecret, cfg.Tokens.Issuer, cfg.Tokens.AccessTokenTTL)

	authService := auth.New(log, storage, storage, storage, codec, mail, auth.Options{
		FrontendURL:         cfg.FrontendURL,
		VerificationTTL:     cfg.Tokens.VerificationTokenTTL,
		ResetTTL:            cfg.Tokens.ResetTokenTTL,
		RefreshTTL:          cfg.Tokens.RefreshTokenTTL,
		ForgotPasswordFloor: cfg.Tokens.ForgotPasswordFloor,
	})

	go runCleanup(ctx, log, authService, cfg.Tokens.CleanupInterval)

	origins := cfg.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{cfg.FrontendURL}
	}

	handler := router.New(router.Deps{
		Log:            log,
		Validate:       validation.New(),
		Auth:           authService,
		Tokens:         codec,
		Voice:          voice.New(log, storage, ai, cfg.Assistant.Timeout),
		Transcriber:    stt.New(cfg.STT),
		Campus:         campus.New(log, storage),
		Limiter:        ratelimit.New(log, counter, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window),
		AllowedOrigins: origins,
		RefreshTTL:     cfg.Tokens.RefreshTokenTTL,
		SecureCookie:   cfg.IsProd(),
		TrustProxy:     cfg.HTTPServer.TrustProxy,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("%s: serve: %w", op, err)
		}
	}

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	return nil
}

func setupStorage(ctx context.Context, cfg *config.Config) (store, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		return memory.New(), nil
	}

	pg, err := postgres.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}

	return pg, nil
}

func runCleanup(ctx context.Context, log *slog.Logger, a *auth.Auth, every time.Duration) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.CleanupExpired(ctx); err != nil {
				log.Error("token cleanup failed", sl.Err(err))
			}
		}
	}
}

func configPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	return path
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvDev:
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
