package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/healthapp/reviews/pkg/logger"
)

// DeadLetterSuffix is appended to a topic name to form its dead-letter topic.
const DeadLetterSuffix = ".dlq"

// Handler processes one event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig configures a consumer-group reader.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Topics      []string
	MaxAttempts int
	RetryDelay  time.Duration
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads events for a group and hands them to a Handler. A message
// whose handler keeps failing is copied to the dead-letter topic (when a
// dead-letter writer is configured) and committed so it cannot block the
// partition.
type Consumer struct {
	reader      messageReader
	deadLetter  messageWriter
	handler     Handler
	group       string
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
	closeOnce   sync.Once
}

// NewConsumer creates a consumer for cfg.Topics within cfg.GroupID.
func NewConsumer(cfg ConsumerConfig, handler Handler, l *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})
	dlq := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newConsumer(r, dlq, cfg, handler, l)
}

func newConsumer(r messageReader, dlq messageWriter, cfg ConsumerConfig, handler Handler, l *slog.Logger) *Consumer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &Consumer{
		reader:      r,
		deadLetter:  dlq,
		handler:     handler,
		group:       cfg.GroupID,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      l,
	}
}

// Start consumes until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.InfoContext(ctx, "consumer started", slog.String("group", c.group))
	defer func() { _ = c.Close() }()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfoContext(ctx, "consumer stopping", slog.String("group", c.group))
				return nil
			}
			c.logger.ErrorContext(ctx, "fetch message failed", slog.String("error", err.Error()))
			continue
		}

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.ErrorContext(ctx, "message left uncommitted", slog.String("error", err.Error()))
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.ErrorContext(ctx, "commit message failed",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// process runs the handler with retries. A nil return means the message may
// be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		consumed.WithLabelValues(msg.Topic, c.group, "malformed").Inc()
		c.logger.ErrorContext(ctx, "dropping malformed message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return nil
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier{headers: &msg.Headers})
	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			break
		}
		c.logger.WarnContext(ctx, "handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.retryDelay):
		}
	}
	handleDuration.WithLabelValues(msg.Topic, c.group).Observe(time.Since(start).Seconds())

	if lastErr == nil {
		consumed.WithLabelValues(msg.Topic, c.group, "processed").Inc()
		return nil
	}

	consumed.WithLabelValues(msg.Topic, c.group, "failed").Inc()
	return c.toDeadLetter(ctx, msg, lastErr)
}

func (c *Consumer) toDeadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	if c.deadLetter == nil {
		c.logger.ErrorContext(ctx, "skipping poison message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", cause.Error()),
		)
		return nil
	}

	headers := append([]kafka.Header{}, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(c.group)},
		kafka.Header{Key: "dlq.error", Value: []byte(cause.Error())},
	)
	err := c.deadLetter.WriteMessages(ctx, kafka.Message{
		Topic:   msg.Topic + DeadLetterSuffix,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("dead-letter %s@%d: %w", msg.Topic, msg.Offset, errors.Join(cause, err))
	}
	c.logger.WarnContext(ctx, "message sent to dead-letter topic",
		slog.String("topic", msg.Topic+DeadLetterSuffix),
		slog.Int64("offset", msg.Offset),
	)
	return nil
}

// Close releases the reader and the dead-letter writer. Safe to call twice.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
		if c.deadLetter != nil {
			err = errors.Join(err, c.deadLetter.Close())
		}
	})
	return err
}
