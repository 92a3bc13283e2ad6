package config

import (
	"context"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/events"
)

// EventConfig holds configuration for event publishing
type EventConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Publisher    string `mapstructure:"publisher"` // kafka, memory or mock
	KafkaBrokers string `mapstructure:"kafka_brokers"`
	Topic        string `mapstructure:"topic"`
}

// GetKafkaBrokers returns Kafka brokers as a slice
func (c *EventConfig) GetKafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// CreateEventPublisher creates an event publisher based on configuration.
// The memory publisher starts a consumer that logs every event until ctx ends.
func (c *EventConfig) CreateEventPublisher(ctx context.Context, logger *slog.Logger) (events.EventPublisher, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using mock publisher")
		return events.NewMockEventPublisher(logger), nil
	}

	cfg := events.PublisherConfig{
		KafkaBrokers: c.GetKafkaBrokers(),
		TopicName:    c.Topic,
		Logger:       logger,
	}

	switch c.Publisher {
	case "kafka":
		logger.Info("Creating Kafka event publisher",
			"brokers", c.KafkaBrokers,
			"topic", c.Topic)
		return events.NewKafkaEventPublisher(cfg)
	case "memory":
		logger.Info("Creating in-process event publisher", "topic", c.Topic)
		publisher, pubSub := events.NewChannelEventPublisher(cfg)
		if err := events.LogConsumer(ctx, pubSub, c.Topic, logger); err != nil {
			publisher.Close()
			return nil, err
		}
		return publisher, nil
	case "mock":
		logger.Info("Using mock event publisher")
		return events.NewMockEventPublisher(logger), nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil
	}
}
