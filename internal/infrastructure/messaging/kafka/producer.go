package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// ErrCircuitOpen is returned while the breaker rejects writes.
var ErrCircuitOpen = errors.New("kafka circuit breaker is open")

// Writer is the part of *kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Observer receives publish timings and breaker transitions. Optional.
type Observer interface {
	ObservePublish(elapsed time.Duration)
	SetCircuitBreakerState(name string, state int)
}

var _ postgres.OutboxHandler = (*Producer)(nil)

// Producer implements postgres.OutboxHandler by writing each message to one
// topic keyed by aggregate id, behind a circuit breaker.
type Producer struct {
	writer   Writer
	breaker  *gobreaker.CircuitBreaker
	observer Observer
}

// NewProducer creates a producer writing to cfg.Topic.
func NewProducer(cfg Config, observer Observer) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Async:        false,
	}
	return NewProducerWithWriter(writer, cfg.Breaker, observer)
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(writer Writer, cfg BreakerConfig, observer Observer) *Producer {
	p := &Producer{writer: writer, observer: observer}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-producer",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Default().Warnw("circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())
			if p.observer != nil {
				p.observer.SetCircuitBreakerState(name, int(to))
			}
		},
	})
	return p
}

// Handle publishes one outbox message.
func (p *Producer) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	start := time.Now()
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx, toKafkaMessage(msg))
	})
	if p.observer != nil {
		p.observer.ObservePublish(time.Since(start))
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	if err != nil {
		return fmt.Errorf("publish %s %s: %w", msg.EventType, msg.ID, err)
	}
	return nil
}

// State returns the breaker state.
func (p *Producer) State() gobreaker.State {
	return p.breaker.State()
}

// Close closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func toKafkaMessage(msg *postgres.OutboxMessage) kafka.Message {
	km := kafka.Message{
		Key:   []byte(msg.AggregateID.String()),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(msg.ID.String())},
			{Key: "event-type", Value: []byte(msg.EventType)},
			{Key: "aggregate-type", Value: []byte(msg.AggregateType)},
			{Key: "event-time", Value: []byte(msg.CreatedAt.UTC().Format(time.RFC3339Nano))},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: msg.CreatedAt,
	}
	if msg.TraceID != nil {
		km.Headers = append(km.Headers, kafka.Header{Key: "trace-id", Value: []byte(*msg.TraceID)})
	}
	return km
}

// LogHandler stands in for Kafka when no brokers are configured: it logs
// every message and reports success.
type LogHandler struct{}

// Handle implements postgres.OutboxHandler.
func (LogHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	logger.Info(ctx, "outbox event",
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID.String(),
		"payload", string(msg.Payload),
	)
	return nil
}
