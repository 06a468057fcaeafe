package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"turnero/internal/api"
	"turnero/internal/config"
	"turnero/internal/service"
	"turnero/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("authstub startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	rdb, err := initRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	authSvc, err := service.NewAuthService(rdb, cfg.Auth)
	if err != nil {
		return err
	}
	turnos := service.NewTurnoService()
	seedTurnos(turnos, cfg)

	r := api.RegisterRoutes(
		api.NewAuthHandler(authSvc),
		api.NewTurnoHandler(turnos),
		authSvc,
		rdb,
		cfg.RateLimit.RequestsPerSecond,
	)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("authstub starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment),
			zap.Duration("access_ttl", cfg.Auth.AccessTokenTTL),
			zap.Int("users", len(cfg.Auth.Users)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down authstub...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("authstub exited properly")
	return nil
}

func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// seedTurnos gives every configured tenant a couple of bookings to look at.
func seedTurnos(svc *service.TurnoService, cfg *config.Config) {
	seen := map[string]bool{}
	for _, u := range cfg.Auth.Users {
		if u.Tenant == "" || seen[u.Tenant] {
			continue
		}
		seen[u.Tenant] = true
		svc.Seed(u.Tenant, "central", "19:00")
		svc.Seed(u.Tenant, "2", "20:30")
	}
}
