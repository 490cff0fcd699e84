package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/weftlabs/weft/internal/application/coordinator"
	"github.com/weftlabs/weft/internal/config"
	redisbroker "github.com/weftlabs/weft/pkg/adapters/broker/redis"
	"github.com/weftlabs/weft/pkg/adapters/executor"
	"github.com/weftlabs/weft/pkg/adapters/metrics/prometheus"
	redisstorage "github.com/weftlabs/weft/pkg/adapters/storage/redis"
	"github.com/weftlabs/weft/pkg/api/grpc"
	"github.com/weftlabs/weft/pkg/api/http"
	"github.com/weftlabs/weft/pkg/api/websocket"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting weft engine",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	broker := redisbroker.NewBroker(redisClient, redisbroker.Config{
		TasksStream:  cfg.Broker.TasksStream,
		EventsStream: cfg.Broker.EventsStream,
		PollInterval: cfg.Broker.PollInterval,
		ReadCount:    cfg.Broker.ReadCount,
	}, logger)

	runStore := redisstorage.NewRunStore(redisClient, 24*time.Hour, logger)

	agentExecutor, err := executor.New(&executor.Config{
		Provider:  cfg.Executor.Provider,
		APIKey:    cfg.Executor.APIKey,
		Model:     cfg.Executor.Model,
		MaxTokens: cfg.Executor.MaxTokens,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("failed to create agent executor", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector()

	coord := coordinator.New(
		broker,
		agentExecutor,
		runStore,
		metricsCollector,
		logger,
		coordinator.Config{
			WorkerGroup:         cfg.Broker.WorkerGroup,
			MaxWorkers:          cfg.Workers.MaxWorkers,
			MaxAttempts:         cfg.Workers.MaxRetries,
			RunTimeout:          cfg.Timeouts.RunTimeout,
			ShutdownGrace:       cfg.Timeouts.ShutdownGrace,
			HealthCheckInterval: cfg.Workers.HealthCheckInterval,
		},
	)

	httpServer := http.NewServer(&http.Config{
		Port:        cfg.HTTPPort,
		Coordinator: coord,
		Logger:      logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(broker, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:        cfg.GRPCPort,
		Coordinator: coord,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("weft engine started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_cap", cfg.Workers.MaxWorkers))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := coord.Shutdown(shutdownCtx); err != nil {
		logger.Error("coordinator shutdown error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("weft engine shut down complete")
}

// initLogger initializes the logger based on log level.
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
