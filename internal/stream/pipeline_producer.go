package stream

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pipeline_server/core/domain"
)

// Producer implements out.JobProducer over Redis Streams.
type Producer struct {
	stream *RedisStream
}

func NewProducer(stream *RedisStream) *Producer {
	return &Producer{stream: stream}
}

// Job is the wire format shared with the worker dispatcher.
type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// PublishEmailProcess enqueues one inbound email for async processing.
func (p *Producer) PublishEmailProcess(ctx context.Context, in *domain.InboundEmail) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "email.process",
		Payload: map[string]any{
			"account_id":  in.AccountID,
			"message_id":  in.MessageID,
			"subject":     in.Subject,
			"from_email":  in.FromEmail,
			"sent_at":     in.SentAt.UTC().Format(time.RFC3339),
			"body_text":   in.BodyText,
			"body_html":   in.BodyHTML,
			"attachments": in.Attachments,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamEmailProcess, job)
}

// PublishIndexRebuild enqueues a rebuild of the in-process similarity
// index from storage.
func (p *Producer) PublishIndexRebuild(ctx context.Context, batchSize int) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "index.rebuild",
		Payload: map[string]any{
			"batch_size": batchSize,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamIndexJobs, job)
}
