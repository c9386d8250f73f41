package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/accessdeck/zonegate/internal/config"
	"github.com/accessdeck/zonegate/internal/db"
	"github.com/accessdeck/zonegate/internal/httpapi"
	"github.com/accessdeck/zonegate/internal/logging"
	"github.com/accessdeck/zonegate/internal/zonegate/occupancy"
	"github.com/accessdeck/zonegate/internal/zonegate/service"
	"github.com/accessdeck/zonegate/internal/zonegate/store/sqlite"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "zonegate-server")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
			logger.Fatal("seed dev data", zap.Error(err))
		}
	}

	writer := db.NewWriter(conn)
	defer writer.Close()

	// Stores
	deviceStore := sqlite.NewDeviceStore(conn, writer)
	credentialStore := sqlite.NewCredentialStore(conn, writer)
	ruleStore := sqlite.NewRuleStore(conn, writer)
	accessLogStore := sqlite.NewAccessLogStore(conn, writer)
	locationStore := sqlite.NewMemberLocationStore(conn, writer)
	heartbeatStore := sqlite.NewHeartbeatStore(conn, writer)

	// Occupancy counters: shared via redis when configured, otherwise
	// in-process.
	var tracker occupancy.Tracker
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal("redis ping", zap.Error(err))
		}
		cancel()

		tracker = occupancy.NewRedisTracker(client)
		logger.Info("occupancy tracker using redis", zap.String("addr", cfg.RedisAddr))
	} else {
		tracker = occupancy.NewMemoryTracker()
	}

	// Services
	registry := service.NewDeviceRegistry(deviceStore)
	resolver := service.NewCredentialResolver(credentialStore)
	locations := service.NewMemberLocationTracker(locationStore)
	heartbeatSvc := service.NewHeartbeatService(heartbeatStore, registry)

	engine := service.NewAccessDecisionEngine(service.EngineDeps{
		Registry:    registry,
		Resolver:    resolver,
		TimeRules:   service.NewTimeRuleEvaluator(ruleStore),
		Gender:      service.NewGenderPolicyEvaluator(ruleStore),
		Occupancy:   tracker,
		Locations:   locations,
		Credentials: credentialStore,
		Rules:       ruleStore,
		AccessLog:   accessLogStore,
		Logger:      logger,
		Config: service.EngineConfig{
			StepTimeout:       cfg.StepTimeout,
			FailOpen:          cfg.FailOpen,
			IdempotencyWindow: cfg.IdempotencyWindow,
		},
	})

	pruner := service.NewHeartbeatPruner(heartbeatStore, service.PrunerConfig{
		RetentionDays: cfg.HeartbeatRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:           logger,
		Addr:             cfg.HTTPAddr,
		Engine:           engine,
		HeartbeatService: heartbeatSvc,
		Occupancy:        tracker,
		Locations:        locations,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.Start(); err != nil {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
