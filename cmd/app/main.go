// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mentalspace/internal/config"
	"mentalspace/internal/infra/api"
	pg "mentalspace/internal/infra/db/postgres"
	"mentalspace/internal/infra/logging"
	"mentalspace/internal/infra/metrics"
	"mentalspace/internal/infra/realtime"
	red "mentalspace/internal/infra/redis"
	"mentalspace/internal/infra/sched"
	"mentalspace/internal/infra/security"
	"mentalspace/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, verbose auth errors)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		// logger is not configured yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = version
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(cfg.Server.Version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Security ----
	cipher, err := security.NewMessageCipher(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}
	if cipher == nil {
		logger.Warn().Msg("security.encryption_key not set; messages are stored in plaintext")
	}
	tokens, err := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("token manager")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	sessionRepo := pg.NewChatSessionRepo(pool)
	messageRepo := pg.NewChatMessageRepo(pool, cipher)
	counselorRepo := pg.NewCounselorRepo(pool)
	userRepo := pg.NewUserRepoCacheDecorator(pg.NewUserRepo(pool), redisClient, logger)

	// ---- Realtime hub (relay for the use cases) ----
	hub := realtime.NewHub(logger)

	// ---- Use cases ----
	matcher := usecase.NewMatcher(counselorRepo, messageRepo)
	chatUC := usecase.NewChatUseCase(sessionRepo, messageRepo, counselorRepo, matcher, tm, hub, logger)
	counselorUC := usecase.NewCounselorUseCase(counselorRepo, tm, hub, logger)
	authUC := usecase.NewAuthUseCase(userRepo, counselorRepo, tokens, security.BcryptHasher{}, logger, cfg.Runtime.Dev)
	dispatchUC := usecase.NewDispatchUseCase(sessionRepo, matcher, tm, hub, logger)

	// ---- HTTP + websocket ----
	ws := realtime.NewHandler(hub, authUC, chatUC, counselorUC, cfg.Realtime, cfg.Server.FrontendURL, logger)
	server := api.NewServer(cfg, chatUC, counselorUC, authUC, rateLimiter, ws, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Workers ----
	dispatcher := sched.NewDispatchWorker(cfg.Dispatch.Interval, cfg.Dispatch.BatchSize, cfg.Dispatch.LeaseTTL, dispatchUC, locker, logger)
	poolStats := sched.NewPoolStatsWorker(15*time.Second, pool)
	for _, run := range []func(context.Context) error{dispatcher.Run, poolStats.Run} {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			_ = run(ctx)
		}(run)
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	// socket handlers clear counselor presence before the pool closes
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("realtime shutdown")
	}
	wg.Wait()
	logger.Info().Msg("bye")
}
