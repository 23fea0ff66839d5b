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
	cfg, err := config.LoadConfig("config/consumer.yml")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", models.ServiceConsumer).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.NewDBWithConfig(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}

	if err := migrations.Apply(ctx, database.Pool(), models.ServiceConsumer); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	repository := db.NewProcessedOrderRepo(database)

	publisherLogger := logger.With().Str("component", "kafka-publisher").Logger()
	syncChannel := kafka.NewPublisher(cfg.Kafka.Brokers(), cfg.Kafka.SyncTopic, &publisherLogger)
	syncPublisher := service.NewSyncPublisher(syncChannel, cfg.Kafka.SyncTopic, &publisherLogger)

	operation := service.NewSimulatedOperation(cfg.Processing.FailurePercentage, cfg.Processing.OperationDelay)

	alertLogger := logger.With().Str("component", "alerter").Logger()
	alerter := service.NewLogAlerter(&alertLogger)

	processingLogger := logger.With().Str("component", "processing-service").Logger()
	processingService := service.NewProcessingService(
		repository, syncPublisher, operation, alerter,
		cfg.Processing.MaxRetryAttempts, cfg.Processing.OperationTimeout, &processingLogger,
	)

	peerLogger := logger.With().Str("component", "peer-client").Logger()
	peer := client.NewPeer(cfg, "/sync/order", &peerLogger)

	syncLogger := logger.With().Str("component", "sync-reconciler").Logger()
	reconciler := service.NewSyncReconciler(models.ServiceConsumer, peer, &syncLogger)

	ordersLogger := logger.With().Str("component", "orders-consumer").Logger()
	ordersConsumer := kafka.NewConsumer(
		consumerOptions(cfg, cfg.Kafka.OrdersTopic, cfg.Kafka.GroupID, cfg.Kafka.DeadLetterTopic),
		processingService.HandleMessage,
		&ordersLogger,
	)

	dlqLogger := logger.With().Str("component", "dead-letter-consumer").Logger()
	dlqConsumer := kafka.NewConsumer(
		consumerOptions(cfg, cfg.Kafka.DeadLetterTopic, cfg.Kafka.DeadLetterGroupID, ""),
		processingService.HandleDeadLetterMessage,
		&dlqLogger,
	)

	syncConsumerLogger := logger.With().Str("component", "sync-consumer").Logger()
	syncConsumer := kafka.NewConsumer(
		consumerOptions(cfg, cfg.Kafka.SyncTopic, cfg.Kafka.SyncGroupID, ""),
		reconciler.HandleMessage,
		&syncConsumerLogger,
	)

	serverLogger := logger.With().Str("component", "http-server").Logger()
	httpServer := server.NewConsumer(cfg, processingService, &serverLogger)

	errChan := make(chan error, 4)

	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	consumers := map[string]*kafka.Consumer{
		"orders consumer":      ordersConsumer,
		"dead-letter consumer": dlqConsumer,
		"sync consumer":        syncConsumer,
	}

	for name, consumer := range consumers {
		go func() {
			if err := consumer.Start(ctx); err != nil {
				errChan <- fmt.Errorf("%s error: %w", name, err)
			}
		}()
	}

	logger.Info().Str("address", cfg.GetServerAddress()).Msg("Consumer service started")

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

	for name, consumer := range consumers {
		stopWg.Add(1)
		go func() {
			defer stopWg.Done()
			if err := consumer.Stop(shutdownCtx); err != nil {
				logger.Error().Err(err).Str("consumer", name).Msg("Failed to stop consumer")
			}
		}()
	}

	stopWg.Add(1)
	go func() {
		defer stopWg.Done()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop HTTP server")
		}
	}()

	stopWg.Wait()

	if err := syncChannel.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close sync publisher")
	}

	database.Close()
	cancel()

	logger.Info().Msg("Consumer service stopped")
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
