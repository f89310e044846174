// Package kafka publishes outbox messages to Kafka.
package kafka

import "time"

// Config holds producer configuration.
type Config struct {
	Brokers      []string
	Topic        string
	ClientID     string
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	Breaker BreakerConfig
}

// BreakerConfig tunes the circuit breaker around writes.
type BreakerConfig struct {
	MaxRequests      uint32        // allowed in half-open state
	Interval         time.Duration // failure count reset period while closed
	Timeout          time.Duration // open -> half-open delay
	FailureThreshold uint32        // consecutive failures that trip the breaker
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Brokers:      []string{"localhost:9092"},
		Topic:        "stockledger.events",
		ClientID:     "stockledger-worker",
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,
		Breaker: BreakerConfig{
			MaxRequests:      5,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
	}
}
