package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/metrics"
)

// messageWriter is the subset of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds ledger event stream settings
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	Retry        RetryConfig
}

type ledgerPublisher struct {
	writer  messageWriter
	timeout time.Duration
	retry   RetryConfig
}

var _ domain.LedgerEventPublisher = (*ledgerPublisher)(nil)

// NewLedgerPublisher creates a publisher that writes committed ledger entries
// to cfg.Topic, keyed by user id so a user's events stay ordered.
func NewLedgerPublisher(cfg Config) *ledgerPublisher {
	return newLedgerPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, cfg.WriteTimeout, cfg.Retry)
}

func newLedgerPublisher(writer messageWriter, timeout time.Duration, retry RetryConfig) *ledgerPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return &ledgerPublisher{writer: writer, timeout: timeout, retry: retry}
}

// PublishEntries writes one message per entry in a single batch, retrying
// the whole batch with backoff on write errors
func (p *ledgerPublisher) PublishEntries(ctx context.Context, entries []*domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(entries))
	for _, entry := range entries {
		event := domain.LedgerEvent{
			EntryID:   entry.ID,
			UserID:    entry.UserID,
			Delta:     entry.Delta,
			Reason:    entry.Label(),
			CreatedAt: entry.CreatedAt,
		}
		if entry.SubmissionID != nil {
			event.SubmissionID = *entry.SubmissionID
		}

		value, err := json.Marshal(event)
		if err != nil {
			metrics.RecordEventsPublished("error", len(entries))
			return fmt.Errorf("failed to encode ledger event %s: %w", entry.ID, err)
		}

		messages = append(messages, kafka.Message{
			Key:   []byte(entry.UserID),
			Value: value,
			Time:  entry.CreatedAt,
		})
	}

	var err error
	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		if err = p.write(ctx, messages); err == nil {
			metrics.RecordEventsPublished("success", len(messages))
			logger.Debug("Ledger events published",
				logger.Int("count", len(messages)),
				logger.Int("attempt", attempt),
			)
			return nil
		}

		logger.Warn("Ledger event write failed",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", p.retry.MaxAttempts),
			logger.ErrorField(err),
		)
		if attempt == p.retry.MaxAttempts {
			break
		}
		if sleepErr := sleep(ctx, p.retry.delay(attempt)); sleepErr != nil {
			err = sleepErr
			break
		}
	}

	metrics.RecordEventsPublished("error", len(messages))
	return fmt.Errorf("failed to write ledger events: %w", err)
}

func (p *ledgerPublisher) write(ctx context.Context, messages []kafka.Message) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, messages...)
}

// Close flushes pending writes
func (p *ledgerPublisher) Close() error {
	return p.writer.Close()
}
