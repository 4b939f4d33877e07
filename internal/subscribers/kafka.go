package subscribers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/wolfeidau/guildhall/internal/events"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Publishing runs inline with the request that committed the events, so the
// defaults keep the worst case for one event at defaultPublishBudget.
const (
	defaultPublishTries   = 3
	defaultPublishTimeout = 2 * time.Second
	defaultPublishBudget  = 5 * time.Second
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the JSON document published for every event.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Kind       events.Kind     `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// KafkaPublisher publishes committed events to a topic. Messages are keyed
// by account so events of one account stay ordered within a partition.
type KafkaPublisher struct {
	writer     MessageWriter
	maxTries   uint
	timeout    time.Duration
	budget     time.Duration
	newBackOff func() backoff.BackOff
}

// KafkaOption configures a KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithMaxTries bounds the number of write attempts per event.
func WithMaxTries(n uint) KafkaOption {
	return func(p *KafkaPublisher) { p.maxTries = n }
}

// WithBackOff replaces the retry schedule.
func WithBackOff(newBackOff func() backoff.BackOff) KafkaOption {
	return func(p *KafkaPublisher) { p.newBackOff = newBackOff }
}

// WithWriteTimeout bounds a single write attempt.
func WithWriteTimeout(d time.Duration) KafkaOption {
	return func(p *KafkaPublisher) { p.timeout = d }
}

// WithPublishBudget bounds the total time spent publishing one event,
// retries and waits included. 0 removes the bound.
func WithPublishBudget(d time.Duration) KafkaOption {
	return func(p *KafkaPublisher) { p.budget = d }
}

// NewKafkaWriter creates a writer for topic on the given brokers.
func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}, nil
}

// NewKafkaPublisher creates a publisher over writer.
func NewKafkaPublisher(writer MessageWriter, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{
		writer:   writer,
		maxTries: defaultPublishTries,
		timeout:  defaultPublishTimeout,
		budget:   defaultPublishBudget,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *KafkaPublisher) Name() string { return "kafka_publisher" }

func (p *KafkaPublisher) Handle(ctx context.Context, e events.Event) error {
	msg, err := encode(e)
	if err != nil {
		return err
	}

	attempt := 0
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(p.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			zerolog.Ctx(ctx).Warn().
				Err(err).
				Str("event_id", e.ID().String()).
				Int("attempt", attempt).
				Dur("next_retry", next).
				Msg("Failed to publish event, will retry")
		}),
	}

	publishCtx := ctx
	if p.budget > 0 {
		var cancel context.CancelFunc
		publishCtx, cancel = context.WithTimeout(ctx, p.budget)
		defer cancel()
		opts = append(opts, backoff.WithMaxElapsedTime(p.budget))
	}

	_, err = backoff.Retry(publishCtx, func() (struct{}, error) {
		attempt++
		writeCtx, cancel := context.WithTimeout(publishCtx, p.timeout)
		defer cancel()
		return struct{}{}, p.writer.WriteMessages(writeCtx, msg)
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to publish %s event after %d attempts: %w", e.Kind(), attempt, err)
	}

	telemetry.GetMetrics().EventsPublishedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", string(e.Kind()))))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(e events.Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode %s event: %w", e.Kind(), err)
	}

	body, err := json.Marshal(Envelope{
		ID:         e.ID(),
		Kind:       e.Kind(),
		OccurredAt: e.OccurredAt(),
		Payload:    payload,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode envelope: %w", err)
	}

	return kafka.Message{
		Key:   partitionKey(e),
		Value: body,
		Time:  e.OccurredAt(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(e.Kind())},
		},
	}, nil
}

func partitionKey(e events.Event) []byte {
	var accountID int64
	switch ev := e.(type) {
	case models.AccountCreated:
		accountID = ev.AccountID
	case models.AccountTierChanged:
		accountID = ev.AccountID
	case models.CharacterCreated:
		accountID = ev.AccountID
	case models.CharacterLevelledUp:
		accountID = ev.AccountID
	case models.CharacterRenamed:
		accountID = ev.AccountID
	case models.CharacterDeleted:
		accountID = ev.AccountID
	default:
		return []byte(e.ID().String())
	}
	return []byte(strconv.FormatInt(accountID, 10))
}
