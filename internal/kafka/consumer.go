package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/arcade-progress/internal/config"
	"github.com/arcade-progress/internal/domain"
	"github.com/arcade-progress/internal/metrics"
)

// Kafka message outcomes
const (
	ResultAccepted  = "accepted"
	ResultMalformed = "malformed"
	ResultInvalid   = "invalid"
)

// BatchSubmitter records batches of game results
type BatchSubmitter interface {
	SubmitScoreBatch(ctx context.Context, batch domain.BatchScoreSubmission) (domain.BatchOutcome, error)
}

// Consumer consumes game session results from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       BatchSubmitter
	metrics       *metrics.Recorder
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler BatchSubmitter, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// SetMetrics sets the metrics recorder
func (c *Consumer) SetMetrics(m *metrics.Recorder) {
	c.metrics = m
}

// Start begins consuming messages and blocks until the first session is set up
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	<-c.ready
	c.logger.Info("Kafka consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// decodeSubmission parses and validates one message value
func decodeSubmission(value []byte) (domain.ScoreSubmission, error) {
	var submission domain.ScoreSubmission
	if err := json.Unmarshal(value, &submission); err != nil {
		return submission, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	submission.PlayerID = strings.TrimSpace(submission.PlayerID)
	submission.Game = strings.TrimSpace(submission.Game)
	if submission.PlayerID == "" || submission.Game == "" {
		return submission, fmt.Errorf("%w: playerId and game are required", domain.ErrInvalidRequest)
	}
	if submission.Score < 0 {
		return submission, fmt.Errorf("%w: %d", domain.ErrInvalidScore, submission.Score)
	}
	return submission, nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// submit stores batch, resubmitting the retryable failures up to
// MaxAttempts times. It fails when entries are still unstored.
func (c *Consumer) submit(ctx context.Context, batch domain.BatchScoreSubmission) error {
	for attempt := 1; ; attempt++ {
		submitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		outcome, err := c.handler.SubmitScoreBatch(submitCtx, batch)
		cancel()
		if err == nil {
			c.logger.Debug("processed batch",
				"batch_size", len(batch.Scores),
				"accepted", outcome.Accepted,
				"rejected", outcome.Rejected,
			)
			return nil
		}

		batch = outcome.Retry(batch)
		c.logger.Warn("batch partially failed",
			"attempt", attempt,
			"failed", len(batch.Scores),
			"error", err,
		)
		if attempt >= c.config.MaxAttempts {
			return fmt.Errorf("submitting batch after %d attempts: %w", attempt, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("submitting batch: %w", ctx.Err())
		case <-time.After(c.config.RetryBackoff):
		}
	}
}

// ConsumeClaim batches the results of one partition by size and timeout.
// Offsets are marked only once their batch is stored, so a batch that
// cannot be stored ends the session and is redelivered.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	c := h.consumer
	cfg := c.config
	batch := make([]domain.ScoreSubmission, 0, cfg.BatchSize)
	pending := make([]*sarama.ConsumerMessage, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() error {
		if len(pending) == 0 {
			return nil
		}
		if len(batch) > 0 {
			if err := c.submit(session.Context(), domain.BatchScoreSubmission{Scores: batch}); err != nil {
				c.logger.Error("failed to process batch, leaving offsets unmarked",
					"error", err,
					"batch_size", len(batch),
					"partition", claim.Partition(),
				)
				return err
			}
		}

		for _, message := range pending {
			session.MarkMessage(message, "")
		}
		batch = batch[:0]
		pending = pending[:0]
		return nil
	}

	for {
		select {
		case <-session.Context().Done():
			return processBatch()

		case <-batchTimer.C:
			if err := processBatch(); err != nil {
				return err
			}
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				return processBatch()
			}
			pending = append(pending, message)

			submission, err := decodeSubmission(message.Value)
			if err != nil {
				result := ResultMalformed
				if domain.IsClientError(err) && json.Valid(message.Value) {
					result = ResultInvalid
				}
				c.metrics.RecordKafkaMessage(result)
				c.logger.Warn("skipping session result",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				continue
			}

			c.metrics.RecordKafkaMessage(ResultAccepted)
			batch = append(batch, submission)

			if len(batch) >= cfg.BatchSize {
				if err := processBatch(); err != nil {
					return err
				}
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}
