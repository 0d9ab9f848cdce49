package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-support/internal/audit"
	"live-support/internal/auth"
	"live-support/internal/calls"
	"live-support/internal/config"
	"live-support/internal/httpapi"
	"live-support/internal/notify"
	"live-support/internal/otp"
	"live-support/internal/ratelimit"
	"live-support/internal/recording"
	"live-support/internal/reporting"
	"live-support/internal/signaling"
	"live-support/internal/users"
	"live-support/pkg/logger"
	"live-support/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(rootCtx, stop, cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, log *slog.Logger) error {
	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrate(ctx, db); err != nil {
		return err
	}

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	userSvc := users.NewService(users.NewPostgresRepo(db))
	if cfg.Bootstrap.AdminUser != "" {
		_, created, err := userSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminUser, cfg.Bootstrap.AdminPassword)
		if err != nil {
			return err
		}
		log.Info("admin user ready", "username", cfg.Bootstrap.AdminUser, "created", created)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.Telegram.Enabled() {
		notifier = notify.NewTelegram(cfg.Telegram, cfg.OTP.TTL, log)
	}

	auditSvc := audit.NewService(audit.NewPostgresRepo(db), log)

	registry := signaling.NewRegistry()
	relay := signaling.NewRelay(registry, log)

	callRepo := calls.NewPostgresRepo(db)
	callSvc := calls.NewService(callRepo, relay, calls.Options{
		DailyLimit:   cfg.Calls.DailyLimit,
		HistoryLimit: cfg.Calls.HistoryLimit,
		Alerter:      notifier,
		Hook:         calls.AuditAdapter{Audit: auditSvc},
		Logger:       log,
	})

	factory, err := recording.NewPionFactory(cfg.Recording.STUNURLs, cfg.Recording.GatherWait, log)
	if err != nil {
		return err
	}
	recorder := recording.NewManager(factory, recording.NewPostgresRepo(db), cfg.Recording.Dir, log)

	h := httpapi.Handlers{
		Auth:      authManager,
		OTP:       otp.NewStore(rdb, otp.Options{TTL: cfg.OTP.TTL, MaxAttempts: cfg.OTP.MaxAttempts}),
		Limiter:   ratelimit.NewLimiter(rdb),
		Users:     userSvc,
		Notifier:  notifier,
		Calls:     callSvc,
		Recording: recorder,
		Reporting: reporting.NewService(callRepo, cfg.Calls.DailyLimit),
		Audit:     auditSvc,
		OTPRequestRule: ratelimit.Rule{
			Limit:  cfg.OTP.RateLimit,
			Window: cfg.OTP.RateWindow,
		},
		Health: healthChecks(db, rdb),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(httpapi.ClientIP())
	r.Use(httpapi.SecurityHeaders())
	r.Use(httpapi.CORS(cfg.HTTP.AllowedOrigins))

	registerRoutes(r, h, auth.RequireAccessToken(authManager), signaling.NewWebSocketHandler(relay, cfg.HTTP.AllowedOrigins))

	// Recording offers wait for ICE gathering before answering.
	writeTimeout := 30*time.Second + cfg.Recording.GatherWait

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		log.Error("recorder shutdown failed", "err", err)
	}
	st := registry.Stats()
	log.Info("shutdown complete", "open_connections", st.Connections, "open_sessions", st.Sessions)
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, schema := range [][]string{users.Schema, calls.Schema, recording.Schema, audit.Schema} {
		if err := utils.ApplySchema(ctx, db, schema...); err != nil {
			return err
		}
	}
	return nil
}

func healthChecks(db *sql.DB, rdb *redis.Client) map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"postgres": func(ctx context.Context) error { return utils.HealthCheck(ctx, db, time.Second) },
		"redis":    func(ctx context.Context) error { return utils.PingRedis(ctx, rdb, time.Second) },
	}
}
