package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
	"go.uber.org/zap"
)

// TickerAnalyzer recomputes the signal for one ticker
type TickerAnalyzer interface {
	AnalyzeTicker(ctx context.Context, ticker string) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer re-analyzes assets as soon as their prices are ingested
type Consumer struct {
	reader   messageReader
	analyzer TickerAnalyzer
	log      *zap.Logger
	topic    string
}

// NewConsumer creates a new Kafka consumer for pipeline events
func NewConsumer(brokers []string, topic, groupID string, analyzer TickerAnalyzer, log *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		reader:   reader,
		analyzer: analyzer,
		log:      log,
		topic:    topic,
	}
}

// Start begins consuming messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info("starting kafka consumer", zap.String("topic", c.topic))

	for {
		select {
		case <-ctx.Done():
			c.log.Info("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return c.reader.Close()
				}
				c.log.Warn("error reading message", zap.Error(err))
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.Error("error processing message",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.PipelineEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal pipeline event: %w", err)
	}

	// SIGNAL_UPDATED is produced by the analyzer itself
	if event.EventType != models.EventPricesIngested {
		c.log.Debug("ignoring event", zap.String("event_type", event.EventType), zap.String("ticker", event.Ticker))
		return nil
	}
	if event.Ticker == "" {
		return fmt.Errorf("%s event without ticker", event.EventType)
	}
	if event.RowsInserted == 0 {
		c.log.Debug("no new prices, skipping analysis", zap.String("ticker", event.Ticker))
		return nil
	}

	if err := c.analyzer.AnalyzeTicker(ctx, event.Ticker); err != nil {
		return fmt.Errorf("failed to analyze %s: %w", event.Ticker, err)
	}
	c.log.Info("re-analyzed after ingest", zap.String("ticker", event.Ticker), zap.Int64("rows_inserted", event.RowsInserted))
	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
