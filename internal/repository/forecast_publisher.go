package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
)

// ForecastEvent is the JSON body published per forecast.
type ForecastEvent struct {
	Type     string          `json:"type"`
	Forecast models.Forecast `json:"forecast"`
	SentAt   time.Time       `json:"sentAt"`
}

type kafkaPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaForecastPublisher emits one event per symbol keyed by symbol, so a symbol's forecasts
// stay ordered within a partition.
type KafkaForecastPublisher struct {
	producer kafkaPublisher
	topic    string
	now      func() time.Time
}

var _ domrepo.ForecastPublisher = (*KafkaForecastPublisher)(nil)

func NewKafkaForecastPublisher(p *pkgkafka.Producer, topic string) *KafkaForecastPublisher {
	return &KafkaForecastPublisher{producer: p, topic: topic, now: time.Now}
}

func (k *KafkaForecastPublisher) Publish(ctx context.Context, f models.Forecast) error {
	return k.producer.Publish(ctx, k.topic, []byte(f.Symbol), ForecastEvent{
		Type:     "forecast.computed",
		Forecast: f,
		SentAt:   k.now().UTC(),
	})
}

func (k *KafkaForecastPublisher) Close() error { return k.producer.Close() }

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.Forecast) error { return nil }
func (NoopPublisher) Close() error { return nil }
