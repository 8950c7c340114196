package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing pipeline events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// PublishPricesIngested announces that new daily prices were stored for an asset
func (p *Producer) PublishPricesIngested(ctx context.Context, asset *models.Asset, inserted int64) error {
	event := models.PipelineEvent{
		EventType:    models.EventPricesIngested,
		Ticker:       asset.Ticker,
		AssetID:      asset.ID,
		RowsInserted: inserted,
		Timestamp:    p.now().UTC(),
	}
	return p.publish(ctx, asset.Ticker, event)
}

// PublishSignalUpdated announces the signal written for an asset's latest trading date
func (p *Producer) PublishSignalUpdated(ctx context.Context, ticker string, s *models.Signal) error {
	date := s.PriceDate
	sharpe := s.SharpeRatio.Round(2)
	event := models.PipelineEvent{
		EventType:   models.EventSignalUpdated,
		Ticker:      ticker,
		AssetID:     s.AssetID,
		PriceDate:   &date,
		SignalType:  s.SignalType,
		SharpeRatio: &sharpe,
		Timestamp:   p.now().UTC(),
	}
	return p.publish(ctx, ticker, event)
}

// Messages are keyed by ticker so one asset's events stay ordered on a partition.
func (p *Producer) publish(ctx context.Context, key string, event models.PipelineEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
