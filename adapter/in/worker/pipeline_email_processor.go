package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pipeline_server/core/domain"
	"pipeline_server/core/port/out"
	"pipeline_server/core/service/pipeline"
	"pipeline_server/pkg/logger"
)

// EmailProcessor handles email.process jobs. Returning an error leaves
// the message pending so the consumer retries it; the orchestrator's
// idempotency check makes those retries safe.
type EmailProcessor struct {
	orchestrator *pipeline.Orchestrator
	archive      out.RawArchive // optional
}

func NewEmailProcessor(orchestrator *pipeline.Orchestrator, archive out.RawArchive) *EmailProcessor {
	return &EmailProcessor{
		orchestrator: orchestrator,
		archive:      archive,
	}
}

func (p *EmailProcessor) ProcessEmail(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[EmailProcessPayload](msg)
	if err != nil {
		return fmt.Errorf("failed to parse email.process payload: %w", err)
	}

	in := &domain.InboundEmail{
		AccountID:   payload.AccountID,
		MessageID:   payload.MessageID,
		Subject:     payload.Subject,
		FromEmail:   payload.FromEmail,
		BodyText:    payload.BodyText,
		BodyHTML:    payload.BodyHTML,
		Attachments: payload.Attachments,
	}
	if payload.SentAt != "" {
		if sentAt, err := time.Parse(time.RFC3339, payload.SentAt); err == nil {
			in.SentAt = sentAt
		}
	}

	// Archive the raw email first. Best-effort: losing the audit
	// copy is not a reason to drop the classification.
	if p.archive != nil {
		if err := p.archive.Archive(ctx, in); err != nil {
			logger.WithField("message_id", in.MessageID).WithError(err).Warn("failed to archive raw email")
		}
	}

	result, err := p.orchestrator.Process(ctx, in)
	if err != nil {
		// Configuration errors poison every retry. Ack the
		// message and leave the error log entry as the record.
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			logger.WithField("message_id", in.MessageID).WithError(err).Error("dropping job after configuration error")
			return nil
		}
		return err
	}

	logger.WithFields(map[string]any{
		"job_id":       msg.ID,
		"email_id":     result.EmailID.String(),
		"request_type": string(result.RequestType),
		"is_duplicate": result.IsDuplicate,
	}).Debug("email.process job done")
	return nil
}
