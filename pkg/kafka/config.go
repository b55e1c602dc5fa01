package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProducerConfig configures the forecast and log-digest writer. Zero values take the
// defaults from withDefaults.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	BatchSize    int
	BatchBytes   int
	Linger       time.Duration
	Async        bool

	// Registerer receives the producer metrics; nil means the default registerer.
	Registerer prometheus.Registerer
}

func (c ProducerConfig) withDefaults() ProducerConfig {
	if c.Compression == "" {
		c.Compression = "gzip"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchBytes <= 0 {
		c.BatchBytes = 1 << 20
	}
	if c.Linger <= 0 {
		c.Linger = 50 * time.Millisecond
	}
	return c
}
