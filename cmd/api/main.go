package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ayushgupta1777/f-vite-backend/internal/api"
	"github.com/ayushgupta1777/f-vite-backend/internal/auth"
	"github.com/ayushgupta1777/f-vite-backend/internal/config"
	"github.com/ayushgupta1777/f-vite-backend/internal/database"
	"github.com/ayushgupta1777/f-vite-backend/internal/events"
	"github.com/ayushgupta1777/f-vite-backend/internal/logger"
	"github.com/ayushgupta1777/f-vite-backend/internal/metrics"
	"github.com/ayushgupta1777/f-vite-backend/internal/presence"
	"github.com/ayushgupta1777/f-vite-backend/internal/repository"
	"github.com/ayushgupta1777/f-vite-backend/internal/service"
	"github.com/ayushgupta1777/f-vite-backend/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(logger.Config{Development: cfg.Development()})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	var store repository.Store
	switch cfg.Storage {
	case "memory":
		store = repository.NewMemoryStore()
		zlog.Warn("using in-memory storage, nothing will survive a restart")
	default:
		db, closeDB, err := database.ConnectMongo(cfg.Mongo.URI, cfg.Mongo.Database, zlog)
		if err != nil {
			zlog.Fatalf("mongo connect: %v", err)
		}
		defer closeDB()
		store, err = repository.NewMongoStore(db)
		if err != nil {
			zlog.Fatalf("mongo indexes: %v", err)
		}
	}

	var (
		otps    auth.OTPStore
		limiter *api.RateLimiter
	)
	if cfg.Redis.Addr != "" {
		rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, zlog)
		if err != nil {
			zlog.Fatalf("redis connect: %v", err)
		}
		defer func() { _ = rdb.Close() }()
		otps = auth.NewRedisOTPStore(rdb, "fvite")
		limiter = api.NewRateLimiter(rdb, "fvite:rl", cfg.RateLimit.Limit, cfg.RateLimitWindow)
	} else if cfg.Development() {
		otps = auth.NewMemoryOTPStore()
	}

	var sink service.EventSink
	if len(cfg.Kafka.Brokers) > 0 {
		pub := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent, zlog)
		defer func() { _ = pub.Close() }()
		sink = pub
	}

	registry := presence.NewRegistry(zlog)
	chatSvc := service.NewChatService(store, registry, sink, zlog)

	tokens := auth.NewManager(cfg.App.JWTSecret, cfg.TokenTTL)
	authSvc := service.NewAuthService(store.Users(), tokens, otps, zlog)

	wsHandler := ws.NewHandler(chatSvc, registry, tokens, ws.Config{
		PingInterval:    cfg.PingInterval,
		WriteDeadline:   cfg.WriteDeadline,
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
		FramesPerSecond: cfg.WS.FramesPerSecond,
	}, zlog)

	handlers := api.NewHandlers(chatSvc, authSvc, cfg.Development(), zlog)
	app := api.NewServer(handlers, tokens, wsHandler, limiter, zlog)

	// Prometheus scrapes a separate listener so the chat port stays
	// clean.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		addr := fmt.Sprintf(":%d", cfg.App.Port+1000)
		zlog.Infow("metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			zlog.Warnf("metrics server: %v", err)
		}
	}()

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		zlog.Infow("api listening", "addr", addr, "storage", cfg.Storage)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		zlog.Fatalf("server error: %v", err)
	case s := <-sig:
		zlog.Infow("signal received", "signal", s.String())
	}

	if err := app.Shutdown(); err != nil {
		zlog.Warnf("shutdown: %v", err)
	}
	zlog.Info("bye")
}
