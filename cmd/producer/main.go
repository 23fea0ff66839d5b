package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"orderpipe/internal/cache"
	"orderpipe/internal/client"
	"orderpipe/internal/config"
	"orderpipe/internal/db"
	"orderpipe/internal/kafka"
	"orderpipe/internal/models"
	"orderpipe/internal/server"
	"orderpipe/internal/service"
	"orderpipe/migrations"
)

func main() {
	cfg, err := config.LoadConfig("config/producer.yml")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", models.ServiceProducer).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.NewDBWithConfig(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}

	if err := migrations.Apply(ctx, database.Pool(), models.ServiceProducer); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	repository := db.NewOrderRepo(database)

	lruCache, err := cache.NewLRU[string, *models.Order](cfg.Cache.Capacity)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize LRU cache")
	}

	cacheLogger := logger.With().Str("component", "cache-manager").Logger()
	cacheManager := cache.NewManager(lruCache, repository, &cacheLogger)

	if err := cacheManager.Warm(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to warm cache, continuing with empty cache")
	}

	publisherLogger := logger.With().Str("component", "kafka-publisher").Logger()
	ordersChannel := kafka.NewPublisher(cfg.Kafka.Brokers(), cfg.Kafka.OrdersTopic, &publisherLogger)
	syncChannel := kafka.NewPublisher(cfg.Kafka.Brokers(), cfg.Kafka.SyncTopic, &publisherLogger)

	orderPublisher := service.NewOrderMessagePublisher(ordersChannel, cfg.Kafka.OrdersTopic, &publisherLogger)
	syncPublisher := service.NewSyncPublisher(syncChannel, cfg.Kafka.SyncTopic, &publisherLogger)

	serviceLogger := logger.With().Str("component", "order-service").Logger()
	orderService := service.NewOrderService(repository, cacheManager, orderPublisher, syncPublisher, &serviceLogger)

	peerLogger := logger.With().Str("component", "peer-client").Logger()
	peer := client.NewPeer(cfg, "/sync/processed-order", &peerLogger)

	syncLogger := logger.With().Str("component", "sync-reconciler").Logger()
	reconciler := service.NewSyncReconciler(models.ServiceProducer, peer, &syncLogger)

	consumerLogger := logger.With().Str("component", "sync-consumer").Logger()
	syncConsumer := kafka.NewConsumer(
		consumerOptions(cfg, cfg.Kafka.SyncTopic, cfg.Kafka.SyncGroupID, ""),
		reconciler.HandleMessage,
		&consumerLogger,
	)

	serverLogger := logger.With().Str("component", "http-server").Logger()
	httpServer := server.NewProducer(cfg, orderService, &serverLogger)

	errChan := make(chan error, 2)

	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	go func() {
		if err := syncConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("sync consumer error: %w", err)
		}
	}()

	logger.Info().Str("address", cfg.GetServerAddress()).Msg("Producer service started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.Error().Err(err).Msg("Component failed, shutting down")
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	var stopWg sync.WaitGroup

	stopWg.Add(1)
	go func() {
		defer stopWg.Done()
		if err := syncConsumer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop sync consumer")
		}
	}()

	stopWg.Add(1)
	go func() {
		defer stopWg.Done()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop HTTP server")
		}
	}()

	stopWg.Wait()

	if err := ordersChannel.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close orders publisher")
	}
	if err := syncChannel.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close sync publisher")
	}

	database.Close()
	cancel()

	logger.Info().Msg("Producer service stopped")
}

func consumerOptions(cfg *config.Config, topic, groupID, deadLetterTopic string) kafka.ConsumerOptions {
	return kafka.ConsumerOptions{
		Brokers:            cfg.Kafka.Brokers(),
		Topic:              topic,
		GroupID:            groupID,
		DeadLetterTopic:    deadLetterTopic,
		MaxReceiveAttempts: cfg.Kafka.MaxReceiveAttempts,
		MaxConcurrent:      cfg.Kafka.MaxConcurrentMessages,
		PollTimeout:        cfg.Kafka.PollTimeout,
		InterPollDelay:     cfg.Kafka.InterPollDelay,
		AckBatchSize:       cfg.Kafka.AckBatchSize,
		AckBatchInterval:   cfg.Kafka.AckBatchInterval,
		MessageTimeout:     cfg.Processing.MessageTimeout,
		Breaker:            cfg.CircuitBreaker,
	}
}
