package server

import (
	"context"
	"fmt"
	"time"

	"resale-market/internal/config"
	"resale-market/internal/database"
	"resale-market/internal/events"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Infra holds the connections shared by every binary
type Infra struct {
	DB        database.Service
	Redis     *redis.Client
	Publisher events.Publisher

	closers []func()
	logger  *zap.Logger
}

// NewInfra connects to PostgreSQL and Redis and assembles the event fan-out.
// Redis pub/sub is always on; Kafka and RabbitMQ are enabled by config.
func NewInfra(cfg *config.Config, logger *zap.Logger) (*Infra, error) {
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, err
	}

	infra := &Infra{DB: db, logger: logger}
	infra.closers = append(infra.closers, func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	})

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		infra.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	infra.Redis = rdb
	infra.closers = append(infra.closers, func() {
		if err := rdb.Close(); err != nil {
			logger.Error("Failed to close redis connection", zap.Error(err))
		}
	})

	publishers := []events.Publisher{events.NewRedisPublisher(rdb)}

	if cfg.Kafka.Enabled {
		producer := events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Buffer, logger)
		producerCtx, stop := context.WithCancel(context.Background())
		producer.Start(producerCtx)
		publishers = append(publishers, producer)
		infra.closers = append(infra.closers, func() {
			stop()
			producer.WaitClosed()
		})
		logger.Info("Kafka publishing enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	if cfg.AMQP.Enabled {
		amqpPublisher, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			infra.Close()
			return nil, err
		}
		publishers = append(publishers, amqpPublisher)
		infra.closers = append(infra.closers, func() {
			if err := amqpPublisher.Close(); err != nil {
				logger.Error("Failed to close RabbitMQ connection", zap.Error(err))
			}
		})
		logger.Info("RabbitMQ publishing enabled", zap.String("exchange", cfg.AMQP.Exchange))
	}

	infra.Publisher = events.NewFanout(logger, publishers...)
	return infra, nil
}

// Close releases resources in reverse order so producers flush before the
// stores they might log against go away
func (i *Infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
	i.closers = nil
}
