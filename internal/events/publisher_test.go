package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litmesh/literature-aggregation-service/internal/domain"
	"github.com/litmesh/literature-aggregation-service/internal/pipeline"
)

// fakeWriter captures messages instead of talking to a broker.
type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		RunID:  "run-123",
		Query:  "transformer architectures",
		Status: pipeline.StatusOK,
		Scorer: pipeline.SourceCountScorerName,
		Diagnostics: []pipeline.Diagnostic{
			{
				Source:     domain.SourceTypeArXiv,
				Mode:       pipeline.ModeOpen,
				Status:     pipeline.DiagnosticOK,
				Results:    3,
				DurationMS: 120,
			},
			{
				Source:     domain.SourceTypeScopus,
				Mode:       pipeline.ModeSkipped,
				Status:     pipeline.DiagnosticSkipped,
				SkipReason: pipeline.SkipReasonMissingCredential,
			},
		},
		RawCount:       3,
		WorkCount:      2,
		DuplicateCount: 1,
		DurationMS:     140,
	}
}

func TestPublisher_RunCompleted(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewPublisherWithWriter(Config{Topic: "litagg.run_summaries"}, writer, zerolog.Nop())

	pub.RunCompleted(context.Background(), sampleResult())

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "run-123", string(msg.Key))

	var summary RunSummary
	require.NoError(t, json.Unmarshal(msg.Value, &summary))

	assert.Equal(t, "run-123", summary.RunID)
	assert.Equal(t, pipeline.StatusOK, summary.Status)
	assert.Equal(t, pipeline.SourceCountScorerName, summary.Scorer)
	assert.Equal(t, 3, summary.RawCount)
	assert.Equal(t, 2, summary.WorkCount)
	assert.Equal(t, 1, summary.DuplicateCount)
	assert.Equal(t, int64(140), summary.DurationMS)
	assert.False(t, summary.EmittedAt.IsZero())

	require.Len(t, summary.Connectors, 2)
	assert.Equal(t, "arxiv", summary.Connectors[0].Source)
	assert.Equal(t, "open", summary.Connectors[0].Mode)
	assert.Equal(t, 3, summary.Connectors[0].Results)
	assert.Equal(t, "scopus", summary.Connectors[1].Source)
	assert.Equal(t, "skipped", summary.Connectors[1].Status)
}

func TestPublisher_RunCompleted_HashesQuery(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewPublisherWithWriter(Config{Topic: "litagg.run_summaries"}, writer, zerolog.Nop())

	pub.RunCompleted(context.Background(), sampleResult())

	require.Len(t, writer.messages, 1)
	payload := writer.messages[0].Value

	// The raw query text must never appear on the wire.
	assert.NotContains(t, string(payload), "transformer architectures")

	var summary RunSummary
	require.NoError(t, json.Unmarshal(payload, &summary))
	assert.Equal(t, hashQuery("transformer architectures"), summary.QueryHash)
	assert.Len(t, summary.QueryHash, 64)
}

func TestPublisher_RunCompleted_WriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unavailable")}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	pub := NewPublisherWithWriter(Config{Topic: "litagg.run_summaries"}, writer, logger)

	// A failed enqueue is logged and swallowed.
	pub.RunCompleted(context.Background(), sampleResult())

	assert.Empty(t, writer.messages)
	assert.Contains(t, buf.String(), "failed to enqueue run summary")
	assert.Contains(t, buf.String(), "run-123")
}

func TestPublisher_Close(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewPublisherWithWriter(Config{Topic: "litagg.run_summaries"}, writer, zerolog.Nop())

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestHashQuery(t *testing.T) {
	// SHA-256 of the empty string is a fixed, well-known value.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		hashQuery(""))

	assert.Equal(t, hashQuery("crispr"), hashQuery("crispr"))
	assert.NotEqual(t, hashQuery("crispr"), hashQuery("crispr gene editing"))
}
