// Package config loads and validates service configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// A Config represents all configuration of one pipeline service
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Kafka          KafkaConfig          `yaml:"kafka"`
	Processing     ProcessingConfig     `yaml:"processing"`
	Peer           PeerConfig           `yaml:"peer"`
	Cache          CacheConfig          `yaml:"cache"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// A ServerConfig contains configurations for HTTP server
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// A DatabaseConfig contains settings for Postgres
type DatabaseConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string
	Password           string
	Database           string
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConnections int           `yaml:"max_open_connections"`
	MinOpenConnections int           `yaml:"min_open_connections"`
	MinIdleConnections int           `yaml:"min_idle_connections"`
	HealthCheckPeriod  time.Duration `yaml:"health_check_period"`
}

// A KafkaConfig contains the message channel settings: topics, consumer
// groups and the transport-level redelivery budget
type KafkaConfig struct {
	Listeners             string        `yaml:"listeners"`
	OrdersTopic           string        `yaml:"orders_topic"`
	DeadLetterTopic       string        `yaml:"dead_letter_topic"`
	SyncTopic             string        `yaml:"sync_topic"`
	GroupID               string        `yaml:"group_id"`
	SyncGroupID           string        `yaml:"sync_group_id"`
	DeadLetterGroupID     string        `yaml:"dead_letter_group_id"`
	MaxReceiveAttempts    int           `yaml:"max_receive_attempts"`
	MaxConcurrentMessages int           `yaml:"max_concurrent_messages"`
	PollTimeout           time.Duration `yaml:"poll_timeout"`
	InterPollDelay        time.Duration `yaml:"inter_poll_delay"`
	AckBatchSize          int           `yaml:"ack_batch_size"`
	AckBatchInterval      time.Duration `yaml:"ack_batch_interval"`
}

// Brokers splits the listeners string into broker addresses
func (k KafkaConfig) Brokers() []string {
	brokers := strings.Split(k.Listeners, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}
	return brokers
}

// A ProcessingConfig contains the processor's retry budget and attempt deadline
type ProcessingConfig struct {
	MaxRetryAttempts  int           `yaml:"max_retry_attempts"`
	OperationTimeout  time.Duration `yaml:"operation_timeout"`
	MessageTimeout    time.Duration `yaml:"message_timeout"`
	FailurePercentage int           `yaml:"failure_percentage"`
	OperationDelay    time.Duration `yaml:"operation_delay"`
}

// A PeerConfig points at the other service's synchronous lookup API
type PeerConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
}

// A CacheConfig represents settings for the order read cache
type CacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// A CircuitBreakerConfig represents circuit breaker configurations
type CircuitBreakerConfig struct {
	MaxFailures      int           `yaml:"max_failures"`
	Timeout          time.Duration `yaml:"timeout"`
	HalfOpenMaxCalls int           `yaml:"half_open_max_calls"`
}

// LoadConfig loads data into Config structure from a file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	config.loadEnv()
	config.applyDefaults()
	return &config, nil
}

// loadEnv overlays secrets and endpoints from the environment
func (c *Config) loadEnv() {
	_ = godotenv.Load("deployments/.env")

	c.Database.User = os.Getenv("POSTGRES_USER")
	c.Database.Password = os.Getenv("POSTGRES_PASSWORD")
	c.Database.Database = os.Getenv("POSTGRES_DB")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Listeners = brokers
	}
	if peerURL := os.Getenv("PEER_BASE_URL"); peerURL != "" {
		c.Peer.BaseURL = peerURL
	}
}

// applyDefaults fills zero values the service cannot run without
func (c *Config) applyDefaults() {
	if c.Kafka.MaxReceiveAttempts == 0 {
		c.Kafka.MaxReceiveAttempts = 3
	}
	if c.Kafka.MaxConcurrentMessages == 0 {
		c.Kafka.MaxConcurrentMessages = 10
	}
	if c.Kafka.PollTimeout == 0 {
		c.Kafka.PollTimeout = time.Second
	}
	if c.Kafka.AckBatchSize == 0 {
		c.Kafka.AckBatchSize = 20
	}
	if c.Kafka.AckBatchInterval == 0 {
		c.Kafka.AckBatchInterval = time.Second
	}
	if c.Processing.MaxRetryAttempts == 0 {
		c.Processing.MaxRetryAttempts = 3
	}
	if c.Processing.OperationTimeout == 0 {
		c.Processing.OperationTimeout = 10 * time.Second
	}
	if c.Processing.MessageTimeout == 0 {
		c.Processing.MessageTimeout = 30 * time.Second
	}
	if c.Peer.RequestTimeout == 0 {
		c.Peer.RequestTimeout = 5 * time.Second
	}
	if c.Peer.MaxAttempts == 0 {
		c.Peer.MaxAttempts = 3
	}
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// Validate checks if the most important fields are properly filled
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return errors.New("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if strings.TrimSpace(c.Kafka.Listeners) == "" {
		return errors.New("kafka listeners are required")
	}
	if c.Kafka.OrdersTopic == "" {
		return errors.New("orders topic is required")
	}
	if c.Kafka.SyncTopic == "" {
		return errors.New("sync topic is required")
	}
	if c.Kafka.MaxReceiveAttempts <= 0 {
		return errors.New("max receive attempts must be positive")
	}
	if c.Kafka.MaxConcurrentMessages <= 0 {
		return errors.New("max concurrent messages must be positive")
	}
	if c.Processing.MaxRetryAttempts <= 0 {
		return errors.New("max retry attempts must be positive")
	}
	if c.Processing.FailurePercentage < 0 || c.Processing.FailurePercentage > 100 {
		return fmt.Errorf("failure percentage out of range: %d", c.Processing.FailurePercentage)
	}
	if c.Cache.Capacity < 0 {
		return errors.New("cache capacity cannot be negative")
	}

	return nil
}
