package kafka

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/arcade-progress/internal/domain"
)

// NewSyncProducer connects a synchronous producer to brokers
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}
	return producer, nil
}

// SessionPublisher publishes finished game sessions, keyed by player so a
// player's results stay ordered within one partition
type SessionPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewSessionPublisher creates a publisher writing to topic
func NewSessionPublisher(producer sarama.SyncProducer, topic string, logger *slog.Logger) *SessionPublisher {
	return &SessionPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish sends one session result
func (p *SessionPublisher) Publish(submission domain.ScoreSubmission) error {
	value, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(submission.PlayerID),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("sending session: %w", err)
	}

	p.logger.Debug("published session",
		"player_id", submission.PlayerID,
		"game", submission.Game,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close closes the underlying producer
func (p *SessionPublisher) Close() error {
	return p.producer.Close()
}
