// Package events publishes run summaries to Kafka so downstream consumers
// can track aggregation activity without querying the service. Publishing
// is optional and never affects a pipeline run's outcome.
package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/litmesh/literature-aggregation-service/internal/observability"
	"github.com/litmesh/literature-aggregation-service/internal/pipeline"
)

// RunSummary is the JSON payload published after each pipeline run. The
// query travels only as a SHA-256 hash: raw query text never leaves the
// service through this channel.
type RunSummary struct {
	RunID          string             `json:"run_id"`
	QueryHash      string             `json:"query_hash"`
	Status         string             `json:"status"`
	Scorer         string             `json:"scorer"`
	Connectors     []ConnectorSummary `json:"connectors"`
	RawCount       int                `json:"raw_count"`
	WorkCount      int                `json:"work_count"`
	DuplicateCount int                `json:"duplicate_count"`
	DurationMS     int64              `json:"duration_ms"`
	EmittedAt      time.Time          `json:"emitted_at"`
}

// ConnectorSummary reports how a single connector behaved during a run.
type ConnectorSummary struct {
	Source     string `json:"source"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Results    int    `json:"results"`
	DurationMS int64  `json:"duration_ms"`
}

// Config holds configuration for the run-summary publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic to publish run summaries to.
	Topic string
	// ClientID identifies this service to the Kafka cluster.
	ClientID string
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration
}

// messageWriter is the subset of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits one RunSummary per completed pipeline run. The writer
// runs in async mode, so RunCompleted only enqueues: delivery failures are
// logged by the completion callback and never reach the pipeline.
type Publisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// Compile-time check that Publisher satisfies the pipeline's sink contract.
var _ pipeline.EventSink = (*Publisher)(nil)

// NewPublisher creates a publisher backed by a real Kafka writer.
func NewPublisher(cfg Config, logger zerolog.Logger) *Publisher {
	p := &Publisher{
		topic:  cfg.Topic,
		logger: observability.WithComponent(logger, "events"),
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}
	writer.Completion = func(messages []kafka.Message, err error) {
		if err != nil {
			p.logger.Error().Err(err).
				Int("messages", len(messages)).
				Str("topic", p.topic).
				Msg("failed to publish run summaries")
		}
	}
	p.writer = writer

	return p
}

// NewPublisherWithWriter creates a publisher with a custom writer.
// This is useful for testing without a broker.
func NewPublisherWithWriter(cfg Config, writer messageWriter, logger zerolog.Logger) *Publisher {
	return &Publisher{
		writer: writer,
		topic:  cfg.Topic,
		logger: observability.WithComponent(logger, "events"),
	}
}

// RunCompleted enqueues a summary of the finished run, keyed by run ID.
func (p *Publisher) RunCompleted(ctx context.Context, result *pipeline.Result) {
	summary := summarize(result)

	value, err := json.Marshal(summary)
	if err != nil {
		p.logger.Error().Err(err).
			Str("run_id", result.RunID).
			Msg("failed to marshal run summary")
		return
	}

	msg := kafka.Message{
		Key:   []byte(result.RunID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).
			Str("run_id", result.RunID).
			Str("topic", p.topic).
			Msg("failed to enqueue run summary")
		return
	}

	p.logger.Debug().
		Str("run_id", result.RunID).
		Str("topic", p.topic).
		Msg("run summary enqueued")
}

// Close flushes pending messages and closes the Kafka writer.
func (p *Publisher) Close() error {
	p.logger.Info().Msg("closing run summary publisher")
	return p.writer.Close()
}

// summarize projects a run result onto the wire payload, hashing the query.
func summarize(result *pipeline.Result) RunSummary {
	connectors := make([]ConnectorSummary, 0, len(result.Diagnostics))
	for _, d := range result.Diagnostics {
		connectors = append(connectors, ConnectorSummary{
			Source:     string(d.Source),
			Mode:       string(d.Mode),
			Status:     d.Status,
			Results:    d.Results,
			DurationMS: d.DurationMS,
		})
	}

	return RunSummary{
		RunID:          result.RunID,
		QueryHash:      hashQuery(result.Query),
		Status:         result.Status,
		Scorer:         result.Scorer,
		Connectors:     connectors,
		RawCount:       result.RawCount,
		WorkCount:      result.WorkCount,
		DuplicateCount: result.DuplicateCount,
		DurationMS:     result.DurationMS,
		EmittedAt:      time.Now().UTC(),
	}
}

// hashQuery returns the hex SHA-256 of the query text.
func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}
